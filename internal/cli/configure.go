package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustvibe/tea/internal/config"
)

var (
	configureAnthropicKey string
	configureSerperKey    string
	configureMaxQueries   int
	configurePort         int
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the Tea configuration file",
	Long: `Write the Tea configuration file with the provided settings.
Unset flags keep their defaults. API keys can also be supplied at runtime
through TEA_ANTHROPIC_API_KEY and TEA_SERPER_API_KEY.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureAnthropicKey, "anthropic-key", "", "Anthropic API key")
	configureCmd.Flags().StringVar(&configureSerperKey, "serper-key", "", "Serper API key")
	configureCmd.Flags().IntVar(&configureMaxQueries, "max-queries", 0, "queries allowed per session")
	configureCmd.Flags().IntVar(&configurePort, "port", 0, "HTTP listen port")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configureAnthropicKey != "" {
		cfg.Anthropic.APIKey = configureAnthropicKey
	}
	if configureSerperKey != "" {
		cfg.Serper.APIKey = configureSerperKey
	}
	if configureMaxQueries > 0 {
		cfg.Quota.MaxQueries = configureMaxQueries
	}
	if configurePort > 0 {
		cfg.Server.Port = configurePort
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println("Configuration saved.")
	fmt.Println("You can now start Tea with: tea serve")

	return nil
}
