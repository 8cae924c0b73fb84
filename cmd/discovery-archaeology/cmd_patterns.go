package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/engine"
)

func patternsCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect innovation patterns across stored inventions",
	}
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON")

	run := func(requireKey bool, fn func(cmd *cobra.Command, eng *engine.Engine) (any, func(), error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			eng, cleanup, err := newEngine(cmd.Context(), logger, requireKey)
			if err != nil {
				return fmt.Errorf("patterns %s: %w", cmd.Name(), err)
			}
			defer cleanup()

			v, show, err := fn(cmd, eng)
			if err != nil {
				return fmt.Errorf("patterns %s: %w", cmd.Name(), err)
			}
			if outputJSON {
				out, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return fmt.Errorf("patterns %s: marshaling JSON: %w", cmd.Name(), err)
				}
				fmt.Println(string(out))
				return nil
			}
			show()
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List pattern aggregates",
			RunE: run(false, func(cmd *cobra.Command, eng *engine.Engine) (any, func(), error) {
				aggs, err := eng.Patterns(cmd.Context())
				return aggs, func() {
					if len(aggs) == 0 {
						fmt.Println("No patterns recorded.")
					}
					for i := range aggs {
						fmt.Printf("%s (%d inventions)\n", aggs[i].PatternType, len(aggs[i].Inventions))
						fmt.Printf("    %s\n", truncate(aggs[i].Description, 100))
					}
				}, err
			}),
		},
		&cobra.Command{
			Use:   "analyze",
			Short: "Compare stored inventions that share a pattern",
			RunE: run(true, func(cmd *cobra.Command, eng *engine.Engine) (any, func(), error) {
				aggs, err := eng.AnalyzePatterns(cmd.Context())
				return aggs, func() {
					if len(aggs) == 0 {
						fmt.Println("Nothing to compare; at least two inventions must share a pattern.")
					}
					for i := range aggs {
						fmt.Printf("%s: %s\n", aggs[i].PatternType, aggs[i].Inventions)
						fmt.Printf("    %s\n", truncate(aggs[i].Insights, 200))
					}
				}, err
			}),
		},
		&cobra.Command{
			Use:   "themes",
			Short: "Group stored inventions by common theme",
			RunE: run(false, func(cmd *cobra.Command, eng *engine.Engine) (any, func(), error) {
				themes, err := eng.Themes(cmd.Context())
				return themes, func() {
					labels := make([]string, 0, len(themes))
					for label := range themes {
						labels = append(labels, label)
					}
					sort.Strings(labels)
					for _, label := range labels {
						fmt.Printf("%s: %v\n", label, themes[label])
					}
					if len(labels) == 0 {
						fmt.Println("No themes found.")
					}
				}, err
			}),
		},
		&cobra.Command{
			Use:   "timeline",
			Short: "Show dated inventions in year order",
			RunE: run(false, func(cmd *cobra.Command, eng *engine.Engine) (any, func(), error) {
				timeline, err := eng.Timeline(cmd.Context())
				return timeline, func() {
					for _, e := range timeline {
						fmt.Printf("%5d  %s  (key discovery: %s; %d patterns, %d prerequisites)\n",
							e.Year, e.Invention, e.KeyDiscovery, e.PatternCount, e.PrerequisiteCount)
					}
					if len(timeline) == 0 {
						fmt.Println("No dated inventions stored.")
					}
				}, err
			}),
		},
	)
	return cmd
}
