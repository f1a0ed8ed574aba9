package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect [files...]",
	Short: "Identify the scanner type of files",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		recursive, _ := cmd.Flags().GetBool("recursive")
		d := newDetector()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		if len(args) == 0 {
			files, err := d.FindScanFiles(dir, recursive)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "FILE\tTYPE\tCONFIDENCE")
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.Path, f.Type, f.Confidence)
			}
			return nil
		}

		fmt.Fprintln(w, "FILE\tTYPE\tCONFIDENCE\tVALID\tSIZE\tMIME")
		for _, path := range args {
			info, err := d.Info(path)
			if err != nil {
				logger.Error("cannot inspect file", "path", path, "error", err)
				fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\n", path)
				continue
			}
			typ := string(info.Type)
			if typ == "" {
				typ = "unknown"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%s\n", info.Path, typ, info.Confidence, info.Valid, info.Size, info.MimeType)
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().StringP("dir", "d", ".", "Directory to search when no files are given")
	detectCmd.Flags().BoolP("recursive", "r", false, "Search subdirectories")
	rootCmd.AddCommand(detectCmd)
}
