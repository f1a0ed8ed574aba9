package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/secreport/pkg/engine"
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Add summaries, severities and remediation to a findings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		noAI, _ := cmd.Flags().GetBool("no-ai")

		findings, err := engine.ReadFindings(input)
		if err != nil {
			return err
		}
		enricher, err := newEnricher(cmd.Context(), noAI)
		if err != nil {
			return err
		}
		defer enricher.Close()
		enriched, err := enricher.Enrich(cmd.Context(), findings)
		if err != nil {
			return err
		}

		if output == "" {
			output = defaultOutput(input, "_enhanced.json")
		}
		if err := writeRecords(output, enriched, map[string]string{"source_file": input}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Enhanced %d findings into %s\n", len(enriched), output)
		return nil
	},
}

func init() {
	enhanceCmd.Flags().StringP("input", "i", "", "Findings file (.json or .jsonl)")
	enhanceCmd.Flags().StringP("output", "o", "", "Output findings file")
	enhanceCmd.Flags().Bool("no-ai", false, "Use rule-based enrichment only")
	_ = enhanceCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(enhanceCmd)
}
