package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored inventions",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("list: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			inventions, err := st.List(ctx)
			if err != nil {
				return fmt.Errorf("list: fetching inventions: %w", err)
			}

			for _, inv := range inventions {
				year := "----"
				if inv.Year != nil {
					year = fmt.Sprint(*inv.Year)
				}
				fmt.Printf("[%d] %s (%s)\n", inv.ID, inv.Name, year)
				fmt.Printf("    %s\n", truncate(inv.Summary, 100))
			}

			if len(inventions) == 0 {
				fmt.Println("No inventions stored.")
			}
			return nil
		},
	}
}
