package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
)

func analyzeCmd() *cobra.Command {
	var (
		focus      []string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [invention name]",
		Short: "Reconstruct and store the origin story of an invention",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, cleanup, err := newEngine(ctx, logger, true)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			defer cleanup()

			rec, err := eng.Analyze(ctx, models.AnalyzeRequest{InventionName: args[0], FocusAreas: focus})
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			if outputJSON {
				out, err := json.MarshalIndent(rec, "", "  ")
				if err != nil {
					return fmt.Errorf("analyze: marshaling JSON: %w", err)
				}
				fmt.Println(string(out))
				return nil
			}
			printRecord(rec)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&focus, "focus", nil, "aspects to emphasize (repeatable or comma-separated)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}

// printRecord writes a human-readable rendering of a stored analysis.
func printRecord(rec *models.InventionRecord) {
	a := &rec.Analysis
	year := "unknown"
	if a.InventionYear != nil {
		year = fmt.Sprint(*a.InventionYear)
	}
	fmt.Printf("ID:        %d\n", rec.ID)
	fmt.Printf("Invention: %s (%s)\n", a.InventionName, year)
	fmt.Printf("Stored:    %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("\n%s\n", a.Summary)

	if len(a.Discoveries) > 0 {
		fmt.Printf("\nDiscoveries:\n")
		for i := range a.Discoveries {
			d := &a.Discoveries[i]
			when := "    "
			if d.Year != nil {
				when = fmt.Sprintf("%4d", *d.Year)
			}
			fmt.Printf("  %s [%s] %s\n", when, d.DiscoveryType, d.Title)
		}
	}
	if len(a.Connections) > 0 {
		fmt.Printf("\nConnections: %d\n", len(a.Connections))
	}
	if len(a.PatternsIdentified) > 0 {
		fmt.Printf("\nPatterns:\n")
		for _, p := range a.PatternsIdentified {
			fmt.Printf("  %s: %s\n", p, truncate(a.PatternExplanations[p], 100))
		}
	}
	fmt.Printf("\nKey lesson: %s\n", a.KeyLesson)
}
