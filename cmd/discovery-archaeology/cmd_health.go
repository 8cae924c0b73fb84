package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to required services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			// Check the relational store
			st, err := newStore(ctx, logger)
			if err != nil {
				fmt.Printf("Database: FAIL (%v)\n", err)
				allOK = false
			} else {
				defer func() { _ = st.Close() }()
				if err := st.Ping(ctx); err != nil {
					fmt.Printf("Database: FAIL (%v)\n", err)
					allOK = false
				} else {
					fmt.Println("Database: OK")
				}
			}

			// Check Neo4j, when configured
			if cfg.Neo4j.Enabled() {
				proj, err := newProjector(ctx, logger)
				if err != nil {
					fmt.Printf("Neo4j: FAIL (%v)\n", err)
					allOK = false
				} else {
					_ = proj.Close(context.Background())
					fmt.Println("Neo4j: OK")
				}
			} else {
				fmt.Println("Neo4j: disabled")
			}

			// Check Claude API key
			if strings.TrimSpace(cfg.LLM.APIKey) == "" {
				fmt.Println("Claude API: FAIL (no API key configured)")
				allOK = false
			} else {
				fmt.Printf("Claude API: OK (model %s)\n", cfg.LLM.Model)
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
