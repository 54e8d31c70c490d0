/*
Copyright © 2026 Paulo Suderio
*/
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/suderio/draconic-bonus/internal/character"
	"github.com/suderio/draconic-bonus/internal/engine"
	"github.com/suderio/draconic-bonus/internal/journal"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve [character.yaml]",
	Short: "Recompute a character sheet and print its attributes",
	Long: `Loads a character, runs one recompute pass over its active sources and
prints the resulting attributes. Attributes changed by a bonus are highlighted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		trace, _ := cmd.Flags().GetBool("trace")

		e, log, err := newEngine()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = log.Sync() }()

		ch, err := character.LoadCharacter(args[0], nil, log)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		p, err := e.Recompute(ch)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		if path := viper.GetString("journal"); path != "" {
			if err := record(path, p); err != nil {
				log.Error("failed to journal pass", zap.String("journal", path), zap.Error(err))
			}
		}

		fmt.Println(renderSheet(p, trace))
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().Bool("trace", false, "list every modifier the pass resolved")
	resolveCmd.Flags().String("journal", "", "append the pass to this JSONL journal")
	_ = viper.BindPFlag("journal", resolveCmd.Flags().Lookup("journal"))
}

func record(path string, p *engine.Pass) error {
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	n, err := j.NextPass(p.Character.ID)
	if err != nil {
		return err
	}
	return j.RecordPass(n, p)
}

func renderSheet(p *engine.Pass, trace bool) string {
	ch := p.Character
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (level %d)", ch.Name, ch.Level)))
	b.WriteString("\n")

	var rows []string
	for _, path := range ch.Live().Paths() {
		v := ch.Live().Get(path)
		line := fmt.Sprintf("%-36s %s", path, formatNumber(v))
		if base := ch.Base().Get(path); !ch.Base().Has(path) || base != v {
			line = changedStyle.Render(fmt.Sprintf("%s  (%+g)", line, v-base))
		}
		rows = append(rows, line)
	}
	if len(rows) == 0 {
		rows = append(rows, infoStyle.Render("no attributes"))
	}
	b.WriteString(sheetBoxStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	for path, formulas := range sortedDeferred(p) {
		b.WriteString(infoStyle.Render(fmt.Sprintf("%s: deferred %s", path, strings.Join(formulas, ", "))))
		b.WriteString("\n")
	}

	if trace {
		b.WriteString("\n")
		for _, r := range p.Results {
			line := fmt.Sprintf("[%s] %s", r.Outcome, r.Modifier)
			if r.Outcome == stacking.Applied {
				line += fmt.Sprintf(" delta %s", formatNumber(r.Delta))
			}
			if r.Reason != "" {
				line += " (" + r.Reason + ")"
			}
			if r.Outcome == stacking.Skipped {
				line = skippedStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// sortedDeferred yields deferred formulas in path order.
func sortedDeferred(p *engine.Pass) func(yield func(string, []string) bool) {
	return func(yield func(string, []string) bool) {
		live := p.Character.Live()
		for _, path := range live.DeferredPaths() {
			if !yield(path, live.Deferred(path)) {
				return
			}
		}
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
