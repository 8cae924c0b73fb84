package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func getCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "get [invention-id]",
		Short: "Retrieve a stored invention analysis by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("get: invalid id %q", args[0])
			}

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("get: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			rec, err := st.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}

			if outputJSON {
				out, err := json.MarshalIndent(rec, "", "  ")
				if err != nil {
					return fmt.Errorf("get: marshaling JSON: %w", err)
				}
				fmt.Println(string(out))
				return nil
			}
			printRecord(rec)
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}
