package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
)

func exportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all stored analyses to JSON or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("export: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			records, err := st.ListRecords(ctx)
			if err != nil {
				return fmt.Errorf("export: listing inventions: %w", err)
			}

			var w io.Writer = os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("export: creating output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			if err := writeExport(w, format, records); err != nil {
				return fmt.Errorf("export: %w", err)
			}

			if output != "" && output != "-" {
				fmt.Fprintf(os.Stderr, "Exported %d inventions to %s\n", len(records), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file path (- for stdout)")
	return cmd
}

// writeExport encodes records in the given format. YAML keys follow the
// JSON field names.
func writeExport(w io.Writer, format string, records []models.InventionRecord) error {
	if records == nil {
		records = []models.InventionRecord{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		return nil
	case "yaml":
		raw, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("encoding records: %w", err)
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decoding records: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (use json or yaml)", format)
	}
}
