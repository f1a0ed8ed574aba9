package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fullReportCmd = &cobra.Command{
	Use:   "full-report",
	Short: "Parse, enrich and export a scanner output file in one step",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		typ, _ := cmd.Flags().GetString("type")
		output, _ := cmd.Flags().GetString("output")
		noAI, _ := cmd.Flags().GetBool("no-ai")
		skipEnrich, _ := cmd.Flags().GetBool("skip-enrich")

		findings, err := parseInput(input, typ)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Parsed %d findings from %s\n", len(findings), input)

		if !skipEnrich {
			enricher, err := newEnricher(cmd.Context(), noAI)
			if err != nil {
				return err
			}
			defer enricher.Close()
			findings, err = enricher.Enrich(cmd.Context(), findings)
			if err != nil {
				return err
			}
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

func init() {
	fullReportCmd.Flags().StringP("input", "i", "", "Scanner output file")
	fullReportCmd.Flags().StringP("type", "t", "auto", "Scan type (nmap, burp, nuclei, auto)")
	fullReportCmd.Flags().StringP("output", "o", "", "Report path")
	fullReportCmd.Flags().Bool("no-ai", false, "Use rule-based enrichment only")
	fullReportCmd.Flags().Bool("skip-enrich", false, "Export parsed findings without enrichment")
	addReportFlags(fullReportCmd)
	_ = fullReportCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(fullReportCmd)
}
