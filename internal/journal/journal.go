// Package journal keeps an append-only JSONL record of recompute passes.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/suderio/draconic-bonus/internal/engine"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

// EntryType tags a journal line.
type EntryType string

const (
	EntryPassStarted      EntryType = "PassStarted"
	EntryModifierResolved EntryType = "ModifierResolved"
	EntryPassFinished     EntryType = "PassFinished"
)

// Entry is one journal record.
type Entry interface {
	Type() EntryType
}

type PassStarted struct {
	Pass      int       `json:"pass"`
	Character string    `json:"character"`
	Sources   []string  `json:"sources"`
	At        time.Time `json:"at"`
}

type ModifierResolved struct {
	Pass      int             `json:"pass"`
	Character string          `json:"character"`
	Result    stacking.Result `json:"result"`
}

type PassFinished struct {
	Pass       int                 `json:"pass"`
	Character  string              `json:"character"`
	Attributes map[string]float64  `json:"attributes"`
	Deferred   map[string][]string `json:"deferred,omitempty"`
}

func (PassStarted) Type() EntryType      { return EntryPassStarted }
func (ModifierResolved) Type() EntryType { return EntryModifierResolved }
func (PassFinished) Type() EntryType     { return EntryPassFinished }

// wrapper facilitates serialization of the entry variants.
type wrapper struct {
	Type  EntryType       `json:"type"`
	Entry json.RawMessage `json:"data"`
}

// Journal appends entries to a JSONL file.
type Journal struct {
	file *os.File
}

// Open opens or creates the journal at path for appending.
func Open(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{file: file}, nil
}

// Append marshals one entry as a line.
func (j *Journal) Append(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line, err := json.Marshal(wrapper{Type: e.Type(), Entry: data})
	if err != nil {
		return err
	}
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		return err
	}
	return j.file.Sync()
}

// RecordPass appends the start, every resolution and the outcome of a pass.
func (j *Journal) RecordPass(n int, p *engine.Pass) error {
	ch := p.Character
	ids := make([]string, 0, len(ch.Sources()))
	for _, src := range ch.Sources() {
		ids = append(ids, src.ID)
	}
	if err := j.Append(PassStarted{Pass: n, Character: ch.ID, Sources: ids, At: time.Now().UTC()}); err != nil {
		return err
	}
	for _, r := range p.Results {
		if err := j.Append(ModifierResolved{Pass: n, Character: ch.ID, Result: r}); err != nil {
			return err
		}
	}
	return j.Append(PassFinished{
		Pass:       n,
		Character:  ch.ID,
		Attributes: ch.Live().Values(),
		Deferred:   p.Deferred(),
	})
}

// Load replays every line of the journal.
func (j *Journal) Load() ([]Entry, error) {
	if _, err := j.file.Seek(0, 0); err != nil {
		return nil, err
	}

	var entries []Entry
	scanner := bufio.NewScanner(j.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var w wrapper
		if err := json.Unmarshal(scanner.Bytes(), &w); err != nil {
			return nil, fmt.Errorf("failed to decode wrapper: %w", err)
		}

		var e Entry
		switch w.Type {
		case EntryPassStarted:
			e = &PassStarted{}
		case EntryModifierResolved:
			e = &ModifierResolved{}
		case EntryPassFinished:
			e = &PassFinished{}
		default:
			return nil, fmt.Errorf("unknown entry type in journal: %s", w.Type)
		}
		if err := json.Unmarshal(w.Entry, e); err != nil {
			return nil, fmt.Errorf("failed to parse %s entry: %w", w.Type, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// NextPass returns the number the next recorded pass of character should get.
func (j *Journal) NextPass(character string) (int, error) {
	entries, err := j.Load()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if s, ok := e.(*PassStarted); ok && s.Character == character && s.Pass > n {
			n = s.Pass
		}
	}
	return n + 1, nil
}

// Close handles safe shutdown.
func (j *Journal) Close() error {
	return j.file.Close()
}
