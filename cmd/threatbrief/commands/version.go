package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/threatbrief/display"
	"github.com/teranos/threatbrief/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show threatbrief version information",
	Long:  `Display version, build time, commit hash, and platform information for the threatbrief binary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		w := cmd.OutOrStdout()

		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(w, info)
		}
		fmt.Fprintln(w, info.String())
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
}
