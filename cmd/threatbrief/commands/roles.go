package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/threatbrief/display"
	"github.com/teranos/threatbrief/roles"
)

// RolesCmd lists the role registry
var RolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the expert roles",
	Long:  "Show the role registry (built-in, or pipeline.roles_file when set).",
	RunE:  runRoles,
}

var rolesVerbose bool

func init() {
	RolesCmd.Flags().BoolVar(&rolesVerbose, "backstory", false, "Include each role's backstory")
	RolesCmd.Flags().Bool("json", false, "Output the registry as JSON")
}

func runRoles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := roles.LoadOrDefault(cfg.Pipeline.RolesFile)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(w, map[string]interface{}{
			"version": reg.Version(),
			"roles":   reg.List(),
		})
	}

	header := []string{"Role", "Goal"}
	if rolesVerbose {
		header = append(header, "Backstory")
	}
	rows := [][]string{header}
	for _, r := range reg.List() {
		row := []string{r.DisplayName(), r.Goal}
		if rolesVerbose {
			row = append(row, r.Backstory)
		}
		rows = append(rows, row)
	}

	fmt.Fprintf(w, "Role registry %s (%d roles)\n\n", reg.Version(), reg.Len())
	return pterm.DefaultTable.WithHasHeader().WithData(rows).WithWriter(w).Render()
}
