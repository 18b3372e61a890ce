package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pageblocks/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a pageblocks configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  pageblocks validate -c config.yaml
  pageblocks validate --config /etc/pageblocks/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	public := cfg.PublicURL
	if public == "" {
		public = cfg.Origin
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:       %d\n", cfg.Port)
	fmt.Fprintf(out, "  Origin:     %s\n", cfg.Origin)
	fmt.Fprintf(out, "  Public URL: %s\n", public)
	fmt.Fprintf(out, "  Timeout:    %s\n", cfg.Timeout.Duration())
	fmt.Fprintf(out, "  Production: %d domains\n", len(cfg.ProductionDomains))

	return nil
}
