package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget [invention-id]",
		Short: "Delete a stored invention and its discoveries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("forget: invalid id %q", args[0])
			}

			eng, cleanup, err := newEngine(ctx, logger, false)
			if err != nil {
				return fmt.Errorf("forget: %w", err)
			}
			defer cleanup()

			if err := eng.Delete(ctx, id); err != nil {
				return fmt.Errorf("forget: deleting invention: %w", err)
			}

			fmt.Printf("Deleted invention %d\n", id)
			return nil
		},
	}
}
