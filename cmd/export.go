package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/secreport/pkg/engine"
	"github.com/user/secreport/pkg/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render a findings file as json, jsonl, csv, markdown, html or pdf",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")

		findings, err := engine.ReadFindings(input)
		if err != nil {
			return err
		}
		format, err := exportFormat(cmd, output)
		if err != nil {
			return err
		}
		if output == "" {
			output = defaultOutput(input, "_report"+format.Extension())
		}
		exporter, err := newExporter(cmd, format)
		if err != nil {
			return err
		}
		path, err := exporter.ExportContext(cmd.Context(), findings, output)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
		return nil
	},
}

// exportFormat takes --format, then the output extension, then the
// configured default.
func exportFormat(cmd *cobra.Command, output string) (export.Format, error) {
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		return export.ParseFormat(f)
	}
	if output != "" {
		if f, err := export.FormatFromPath(output); err == nil {
			return f, nil
		}
	}
	return export.ParseFormat(cfg.Export.DefaultFormat)
}

func newExporter(cmd *cobra.Command, format export.Format) (*export.Exporter, error) {
	title, _ := cmd.Flags().GetString("title")
	org, _ := cmd.Flags().GetString("organization")
	return export.NewExporter(format,
		export.WithMetadata(export.Metadata{Title: title, Organization: org}),
		export.WithLogger(logger),
	)
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "", "Report format (json, jsonl, csv, markdown, html, pdf)")
	cmd.Flags().String("title", "", "Report title")
	cmd.Flags().String("organization", "", "Organization shown in the report header")
}

func init() {
	exportCmd.Flags().StringP("input", "i", "", "Findings file (.json or .jsonl)")
	exportCmd.Flags().StringP("output", "o", "", "Report path")
	addReportFlags(exportCmd)
	_ = exportCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(exportCmd)
}
