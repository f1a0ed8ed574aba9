package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/secreport/pkg/engine"
	"github.com/user/secreport/pkg/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Register and run external security tools",
}

var toolsRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a tool command template",
	Example: `  secreport tools register --name whatweb --command "whatweb --log-json={output} {input}" \
    --input-mode url --output-mode json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		command, _ := cmd.Flags().GetString("command")
		desc, _ := cmd.Flags().GetString("description")
		inMode, _ := cmd.Flags().GetString("input-mode")
		outMode, _ := cmd.Flags().GetString("output-mode")
		force, _ := cmd.Flags().GetBool("force")

		registry, err := newRegistry()
		if err != nil {
			return err
		}
		reg := tools.Registration{
			Name:            name,
			CommandTemplate: command,
			Description:     desc,
			InputMode:       tools.InputMode(inMode),
			OutputMode:      tools.OutputMode(outMode),
		}
		var opts []tools.RegisterOption
		if force {
			opts = append(opts, tools.WithOverwrite())
		}
		if err := registry.Register(reg, opts...); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Registered tool %q\n", name)
		if argv, err := reg.Argv(); err == nil && !tools.DefaultResolver().Available(argv[0]) {
			fmt.Fprintf(cmd.OutOrStdout(), "Warning: %s\n", tools.InstallGuidance(argv[0]))
		}
		return nil
	},
}

var toolsRunCmd = &cobra.Command{
	Use:   "run <name> <input>",
	Short: "Run a registered tool and normalize its output",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		findingsPath, _ := cmd.Flags().GetString("findings")
		input := ""
		if len(args) > 1 {
			input = args[1]
		}

		registry, err := newRegistry()
		if err != nil {
			return err
		}
		runner := newRunner(registry)
		res, err := runner.Execute(cmd.Context(), args[0], input, output)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s finished in %s (exit code %d)\n", res.Tool, res.Duration.Round(time.Millisecond), res.ExitCode)
		if res.OutputPath != "" {
			fmt.Fprintf(out, "Output: %s\n", res.OutputPath)
		} else {
			fmt.Fprintln(out, "No output file was produced; using captured stdout")
		}

		findings, err := runner.Findings(res)
		if err != nil {
			return err
		}
		if findingsPath == "" {
			fmt.Fprint(out, engine.Report(findings))
			return nil
		}
		meta := map[string]string{"tool": res.Tool, "input": input}
		if err := writeRecords(findingsPath, findings, meta); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %d findings to %s\n", len(findings), findingsPath)
		return nil
	},
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		list := registry.List()
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tools registered. Try 'secreport tools defaults'.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "NAME\tINPUT\tOUTPUT\tCOMMAND")
		for _, name := range registry.Names() {
			reg := list[name]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, reg.InputMode, reg.OutputMode, reg.CommandTemplate)
		}
		return nil
	},
}

var toolsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which registered tools are installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		st := registry.Status(tools.DefaultResolver())

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d registered tools available\n", st.Available, st.Total)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		for _, ts := range st.Tools {
			state := "missing"
			if ts.Available {
				state = ts.Path
			}
			fmt.Fprintf(w, "  %s\t%s\n", ts.Name, state)
		}
		return nil
	},
}

var toolsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Unregister a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		if err := registry.Unregister(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed tool %q\n", args[0])
		return nil
	},
}

var toolsDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Register common tools that are installed on this system",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		added, err := registry.RegisterDefaults(tools.DefaultResolver())
		if err != nil {
			return err
		}
		if len(added) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No new tools registered")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %d tools:\n", len(added))
		for _, name := range added {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
		}
		return nil
	},
}

func init() {
	toolsRegisterCmd.Flags().String("name", "", "Tool name")
	toolsRegisterCmd.Flags().String("command", "", "Command template with {input} and {output} placeholders")
	toolsRegisterCmd.Flags().String("description", "", "Description")
	toolsRegisterCmd.Flags().String("input-mode", string(tools.InputFile), "Input kind (target, file, url, none)")
	toolsRegisterCmd.Flags().String("output-mode", string(tools.OutputFile), "Output kind (xml, json, jsonl, text, file, directory)")
	toolsRegisterCmd.Flags().Bool("force", false, "Replace an existing registration")
	_ = toolsRegisterCmd.MarkFlagRequired("name")
	_ = toolsRegisterCmd.MarkFlagRequired("command")

	toolsRunCmd.Flags().StringP("output", "o", "", "Tool output path (default: generated under tools.output_dir)")
	toolsRunCmd.Flags().String("findings", "", "Write normalized findings to this file")

	toolsStatusCmd.Flags().Bool("json", false, "Print status as JSON")

	toolsCmd.AddCommand(toolsRegisterCmd, toolsRunCmd, toolsListCmd, toolsStatusCmd, toolsRemoveCmd, toolsDefaultsCmd)
	rootCmd.AddCommand(toolsCmd)
}
