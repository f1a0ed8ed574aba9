package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/secreport/pkg/ai"
	"github.com/user/secreport/pkg/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		out := cmd.OutOrStdout()
		ask := func(prompt string) string {
			fmt.Fprint(out, prompt)
			scanner.Scan()
			return strings.TrimSpace(scanner.Text())
		}

		fmt.Fprintln(out, "secreport setup")
		fmt.Fprintln(out, "---------------")

		// 1. Select Provider
		fmt.Fprintln(out, "Step 1: Choose your AI Provider")
		fmt.Fprintln(out, "1. Gemini (Google)")
		fmt.Fprintln(out, "2. OpenAI")
		fmt.Fprintln(out, "3. Anthropic")

		var provider string
		switch strings.ToLower(ask("Enter number or name > ")) {
		case "1", "gemini":
			provider = "gemini"
		case "2", "openai":
			provider = "openai"
		case "3", "anthropic":
			provider = "anthropic"
		default:
			return errors.New("invalid provider choice")
		}

		// 2. Enter API Key
		fmt.Fprintf(out, "\nStep 2: Enter API Key for %s\n", provider)
		apiKey := ask("> ")
		if apiKey == "" {
			apiKey = cfg.GetAPIKey(provider)
		}
		if apiKey == "" {
			return errors.New("API key cannot be empty")
		}

		// 3. Fetch Models
		fmt.Fprintln(out, "\nStep 3: Validating key and fetching available models...")
		var selectedModel string
		p, err := ai.NewProvider(cmd.Context(), provider, apiKey, "", logger)
		var models []string
		if err == nil {
			models, err = p.ListModels(cmd.Context())
		}
		if err != nil || len(models) == 0 {
			logger.Warn("could not fetch models", "provider", provider, "error", err)
			selectedModel = ask("Enter model name manually (empty for the provider default) > ")
		} else {
			fmt.Fprintf(out, "Retrieved %d models.\n", len(models))
			for i, m := range models {
				fmt.Fprintf(out, "%d. %s\n", i+1, m)
			}
			selIdx, err := strconv.Atoi(ask("Select Model (number) > "))
			if err != nil || selIdx < 1 || selIdx > len(models) {
				fmt.Fprintln(out, "Invalid selection. Using first available model.")
				selIdx = 1
			}
			selectedModel = models[selIdx-1]
		}

		// 4. Save Configuration
		cfg.SelectedProvider = provider
		cfg.SelectedModel = selectedModel
		cfg.SetAPIKey(provider, apiKey)
		if err := config.SaveConfig(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Fprintln(out, "---------------")
		fmt.Fprintln(out, "Setup Complete!")
		fmt.Fprintf(out, "Provider: %s\n", provider)
		fmt.Fprintf(out, "Model:    %s\n", selectedModel)
		fmt.Fprintln(out, "You can now run 'secreport full-report --input <scan file>'")
		return nil
	},
}

func init() {
	configCmd.AddCommand(setupCmd)
}
