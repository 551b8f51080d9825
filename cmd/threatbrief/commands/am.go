package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/threatbrief/am"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage threatbrief configuration",
	Long: `am - Manage threatbrief configuration ("I am")

Configuration sources (in order of precedence):
1. Environment variables (THREATBRIEF_* prefix, plus GROQ_API_KEY,
   OPENROUTER_API_KEY, ANTHROPIC_API_KEY and MODEL)
2. .env in the working directory
3. Project config (./am.toml or ./threatbrief.toml, searched upwards)
4. User config (~/.threatbrief/am.toml)
5. System config (/etc/threatbrief/config.toml)
6. Default values

Examples:
  threatbrief am show                    # Show current configuration
  threatbrief am show --format json      # Show configuration in JSON format
  threatbrief am get pipeline.blueprint  # Get specific config value
  threatbrief am validate                # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the merged threatbrief configuration. API keys are never printed.",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., pipeline.parallelism, render.format)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
}

// redacted returns a copy of cfg safe to print
func redacted(cfg *am.Config) am.Config {
	out := *cfg
	mask := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	mask(&out.Generator.Groq.APIKey)
	mask(&out.Generator.OpenRouter.APIKey)
	mask(&out.Generator.Anthropic.APIKey)
	return out
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigUnvalidated()
	if err != nil {
		return err
	}
	safe := redacted(cfg)
	w := cmd.OutOrStdout()

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(safe, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))

	case "yaml":
		data, err := yaml.Marshal(safe)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Fprintf(w, "# threatbrief configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(safe)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Fprintf(w, "# threatbrief configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}

	if ConfigFile == "" {
		for _, p := range am.SourcePaths() {
			fmt.Fprintf(cmd.ErrOrStderr(), "merged: %s\n", p)
		}
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := am.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
	return nil
}

func loadConfigUnvalidated() (*am.Config, error) {
	if ConfigFile != "" {
		return am.LoadFromFile(ConfigFile)
	}
	return am.Load()
}
