package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/threatbrief/display"
	"github.com/teranos/threatbrief/roles"
	"github.com/teranos/threatbrief/stages"
)

// StagesCmd prints the stage plan
var StagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Show the stage plan for a threat",
	Long: `Show the stages a run would execute, their roles and dependencies.
No generation backend is called.

Examples:
  threatbrief stages
  threatbrief stages --blueprint compact --threat DDoS --instructions
  threatbrief stages --dot | dot -Tpng > stages.png`,
	RunE: runStages,
}

var (
	stagesThreat       string
	stagesBlueprint    string
	stagesDOT          bool
	stagesInstructions bool
)

func init() {
	StagesCmd.Flags().StringVarP(&stagesThreat, "threat", "t", "", "Threat label to plan for (default: Safe)")
	StagesCmd.Flags().StringVar(&stagesBlueprint, "blueprint", "", "Stage blueprint: full, compact, or a YAML file (overrides pipeline.blueprint)")
	StagesCmd.Flags().BoolVar(&stagesDOT, "dot", false, "Print the dependency graph in Graphviz DOT")
	StagesCmd.Flags().BoolVar(&stagesInstructions, "instructions", false, "Include each stage's filled-in instruction")
	StagesCmd.Flags().Bool("json", false, "Output the plan as JSON")
}

func runStages(cmd *cobra.Command, args []string) error {
	bp, reg, err := loadPlanInputs(stagesBlueprint)
	if err != nil {
		return err
	}
	plan, err := bp.Plan(stagesThreat, "{}", reg)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if stagesDOT {
		dot, err := stages.DOT(bp.Name, plan)
		if err != nil {
			return err
		}
		fmt.Fprint(w, dot)
		return nil
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(w, planView(bp, plan, stagesInstructions))
	}

	rows := [][]string{{"#", "Stage", "Role", "Depends on"}}
	for i, st := range plan {
		deps := make([]string, len(st.DependsOn))
		for j, d := range st.DependsOn {
			deps[j] = string(d)
		}
		rows = append(rows, []string{fmt.Sprint(i + 1), string(st.ID), st.Role.DisplayName(), strings.Join(deps, ", ")})
	}
	fmt.Fprintf(w, "Blueprint %s: %s\n\n", bp.Name, bp.Description)
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).WithWriter(w).Render(); err != nil {
		return err
	}

	if stagesInstructions {
		for _, st := range plan {
			fmt.Fprintf(w, "\n## %s\n%s\n", st.ID, st.Instruction)
		}
	}
	return nil
}

type stageView struct {
	ID          string   `json:"id"`
	Role        string   `json:"role"`
	DependsOn   []string `json:"depends_on"`
	Expected    string   `json:"expected_output,omitempty"`
	Instruction string   `json:"instruction,omitempty"`
}

func planView(bp *stages.Blueprint, plan []stages.Stage, withInstructions bool) map[string]interface{} {
	views := make([]stageView, len(plan))
	for i, st := range plan {
		deps := make([]string, len(st.DependsOn))
		for j, d := range st.DependsOn {
			deps[j] = string(d)
		}
		views[i] = stageView{ID: string(st.ID), Role: st.Role.Name, DependsOn: deps, Expected: st.ExpectedOutput}
		if withInstructions {
			views[i].Instruction = st.Instruction
		}
	}
	return map[string]interface{}{
		"blueprint":   bp.Name,
		"description": bp.Description,
		"stages":      views,
	}
}

// loadPlanInputs resolves the blueprint and role registry without a
// generation backend
func loadPlanInputs(blueprintOverride string) (*stages.Blueprint, *roles.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	name := cfg.Pipeline.Blueprint
	if blueprintOverride != "" {
		name = blueprintOverride
	}
	bp, err := stages.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	reg, err := roles.LoadOrDefault(cfg.Pipeline.RolesFile)
	if err != nil {
		return nil, nil, err
	}
	return bp, reg, nil
}
