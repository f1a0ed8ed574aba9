package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/secreport/pkg/batch"
	"github.com/user/secreport/pkg/export"
)

var batchCmd = &cobra.Command{
	Use:   "batch [files...]",
	Short: "Generate a report for every scan file in a directory or list",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		recursive, _ := cmd.Flags().GetBool("recursive")
		outDir, _ := cmd.Flags().GetString("output-dir")
		noAI, _ := cmd.Flags().GetBool("no-ai")
		skipEnrich, _ := cmd.Flags().GetBool("skip-enrich")

		format, err := exportFormat(cmd, "")
		if err != nil {
			return err
		}
		if outDir == "" {
			outDir = cfg.Export.OutputDir
		}

		opts := []batch.Option{
			batch.WithLogger(logger),
			batch.WithExporterFactory(func(f export.Format) (*export.Exporter, error) {
				return newExporter(cmd, f)
			}),
		}
		if !skipEnrich {
			enricher, err := newEnricher(cmd.Context(), noAI)
			if err != nil {
				return err
			}
			defer enricher.Close()
			opts = append(opts, batch.WithEnricher(enricher))
		}
		orch := batch.NewOrchestrator(newDetector(), outDir, opts...)

		var rep *batch.Report
		if len(args) > 0 {
			rep, err = orch.ProcessFiles(cmd.Context(), args, format)
		} else {
			rep, err = orch.Run(cmd.Context(), dir, format, recursive)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Generated %d reports\n", len(rep.Artifacts))
		for _, p := range rep.Artifacts {
			fmt.Fprintf(out, "  %s\n", p)
		}
		if len(rep.Failures) > 0 {
			fmt.Fprintf(out, "Skipped %d files:\n", len(rep.Failures))
			for _, f := range rep.Failures {
				fmt.Fprintf(out, "  %s: %v\n", f.Path, f.Err)
			}
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringP("dir", "d", ".", "Directory to search for scan files")
	batchCmd.Flags().BoolP("recursive", "r", false, "Search subdirectories")
	batchCmd.Flags().String("output-dir", "", "Directory for generated reports")
	batchCmd.Flags().Bool("no-ai", false, "Use rule-based enrichment only")
	batchCmd.Flags().Bool("skip-enrich", false, "Export parsed findings without enrichment")
	addReportFlags(batchCmd)
	rootCmd.AddCommand(batchCmd)
}
