package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/threatbrief/cmd/threatbrief/commands"
	"github.com/teranos/threatbrief/logger"
)

var rootCmd = &cobra.Command{
	Use:   "threatbrief",
	Short: "threatbrief - Incident reports from detected threats",
	Long: `threatbrief - Multi-role LLM analysis of detected threats.

A detected threat and its evidence go through a fixed set of expert
stages (analysis, mitigation, research, explanation) and come out as a
single incident report, rendered to PDF or HTML.

Available commands:
  serve    - Start the report HTTP server
  generate - Generate one report from an evidence file
  stages   - Show the stage plan for a threat
  roles    - List the expert roles
  am       - Manage threatbrief configuration ("I am")
  mcp      - Serve report tools over MCP (stdio)
  stress   - Load test a running server

Examples:
  threatbrief serve                                   # Start the server on :8002
  threatbrief generate alert.json --threat Ransomware # Write a PDF report
  threatbrief stages --dot | dot -Tsvg > stages.svg   # Render the stage graph
  threatbrief am show --format json                   # Show configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Commands whose stdout is machine-readable keep logging quiet
		switch cmd.Name() {
		case "show", "get", "mcp":
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&commands.ConfigFile, "config", "", "Config file (default: ./am.toml, ~/.threatbrief/am.toml, /etc/threatbrief/config.toml)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.StagesCmd)
	rootCmd.AddCommand(commands.RolesCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.McpCmd)
	rootCmd.AddCommand(commands.StressCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
