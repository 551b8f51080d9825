// Package display decides between human and JSON output for CLI commands.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// OutputEnv selects JSON output for every command when set to "json",
// for scripts and assistants driving the CLI
const OutputEnv = "THREATBRIEF_OUTPUT"

// ShouldOutputJSON determines if a command should output JSON based on its
// --json flag, falling back to THREATBRIEF_OUTPUT
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd != nil && cmd.Flags().Lookup("json") != nil && cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}
	return strings.EqualFold(os.Getenv(OutputEnv), "json")
}

// OutputJSON writes v as indented JSON
func OutputJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
