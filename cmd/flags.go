/*
Copyright © 2026 Paulo Suderio
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suderio/draconic-bonus/internal/character"
	"github.com/suderio/draconic-bonus/internal/engine"
	"github.com/suderio/draconic-bonus/internal/flags"
)

// flagsCmd represents the flags command
var flagsCmd = &cobra.Command{
	Use:   "flags [character.yaml]",
	Short: "Query which sources carry a flag",
	Long: `Answers flag aggregation queries over the active sources of a character:
which sources hold the requested keys, which hold a key set to a value, and
the evaluated sum of a key across sources.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		keys, _ := cmd.Flags().GetStringSlice("key")
		value, _ := cmd.Flags().GetString("value")
		anyMode, _ := cmd.Flags().GetBool("any")

		if len(keys) == 0 {
			fmt.Println("Error: at least one --key is required")
			os.Exit(1)
		}

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

		fmt.Println(renderFlags(p, toKeys(keys), value, anyMode))
	},
}

func init() {
	rootCmd.AddCommand(flagsCmd)
	flagsCmd.Flags().StringSlice("key", nil, "flag keys to query (repeatable)")
	flagsCmd.Flags().String("value", "", "list sources whose first key is set to this value")
	flagsCmd.Flags().Bool("any", false, "match sources holding any key instead of all")
}

func toKeys(raw []string) []flags.Key {
	out := make([]flags.Key, 0, len(raw))
	for _, k := range raw {
		out = append(out, flags.Key(strings.TrimSpace(k)))
	}
	return out
}

func renderFlags(p *engine.Pass, keys []flags.Key, value string, anyMode bool) string {
	var b strings.Builder
	mode := flags.MatchAll
	if anyMode {
		mode = flags.MatchAny
	}

	b.WriteString(titleStyle.Render("Matching sources"))
	b.WriteString("\n")
	matches := p.Flags.Matching(mode, keys...)
	if len(matches) == 0 {
		b.WriteString(infoStyle.Render("none"))
		b.WriteString("\n")
	}
	for _, m := range matches {
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if v, ok := m.Values[k]; ok {
				parts = append(parts, fmt.Sprintf("%s=%s", k, v))
			}
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Source.ID, strings.Join(parts, " "))
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Sums"))
	b.WriteString("\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, formatNumber(p.Flags.Sum(k, p.Cache())))
	}

	if value != "" {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s = %s", keys[0], value)))
		b.WriteString("\n")
		v := flags.ParseValue(value)
		for _, src := range p.Flags.SourcesWith(keys[0], v) {
			b.WriteString(src.ID)
			b.WriteString("\n")
		}
		if others := p.Flags.KeysWithValue(v, keys...); len(others) > 0 {
			ks := make([]string, 0, len(others))
			for _, k := range others {
				ks = append(ks, string(k))
			}
			b.WriteString(infoStyle.Render("keys holding it: " + strings.Join(ks, ", ")))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
