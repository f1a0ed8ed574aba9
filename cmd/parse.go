package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/secreport/pkg/engine"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse a scanner output file into normalized findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		typ, _ := cmd.Flags().GetString("type")
		output, _ := cmd.Flags().GetString("output")

		findings, err := parseInput(input, typ)
		if err != nil {
			return err
		}

		if output == "" {
			fmt.Fprint(cmd.OutOrStdout(), engine.Report(findings))
			return nil
		}
		if err := writeRecords(output, findings, map[string]string{"source_file": input}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Parsed %d findings into %s\n", len(findings), output)
		return nil
	},
}

func init() {
	parseCmd.Flags().StringP("input", "i", "", "Scanner output file")
	parseCmd.Flags().StringP("type", "t", "auto", "Scan type (nmap, burp, nuclei, auto)")
	parseCmd.Flags().StringP("output", "o", "", "Write findings to this file (.json or .jsonl)")
	_ = parseCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(parseCmd)
}
