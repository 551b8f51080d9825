// Package stages turns a blueprint, the run inputs and the role registry into
// the ordered list of pipeline stages.
package stages

import (
	"encoding/json"
	"strings"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/prompt"
	"github.com/teranos/threatbrief/roles"
)

// DefaultThreat frames a run without an explicit threat as "no active threat"
const DefaultThreat = "Safe"

// ID uniquely names a stage within one run
type ID string

// Stage is one step of the pipeline. Immutable once built.
type Stage struct {
	ID             ID
	Role           roles.Role
	Template       string // raw instruction template
	Instruction    string // template with the run inputs substituted
	DependsOn      []ID
	ExpectedOutput string // documentation contract, not enforced
}

// Build synthesises one stage per role, in the order given.
//
// An empty threat becomes DefaultThreat. Non-empty evidence must be valid
// JSON; anything else is an input error and no stage is produced. Evidence is
// embedded verbatim. Dependencies come from the blueprint's role table and
// must name roles that appear earlier in rs.
func (bp *Blueprint) Build(threat, evidence string, rs []roles.Role) ([]Stage, error) {
	threat = strings.TrimSpace(threat)
	if threat == "" {
		threat = DefaultThreat
	}
	if strings.TrimSpace(evidence) != "" && !json.Valid([]byte(evidence)) {
		return nil, errors.NewInputErrorf("evidence is not valid structured data")
	}
	if len(rs) == 0 {
		return nil, errors.NewInputErrorf("no roles to build stages for")
	}

	stageOf := make(map[string]ID, len(rs))
	out := make([]Stage, 0, len(rs))

	for _, role := range rs {
		def, ok := bp.definition(role.Name)
		if !ok {
			return nil, errors.NewInputErrorf("blueprint %s has no stage for role %s", bp.Name, role.Name)
		}

		tmpl, err := prompt.Parse(def.Instruction)
		if err != nil {
			return nil, errors.MarkInput(errors.Wrapf(err, "stage %s instruction", def.ID))
		}
		instruction, err := tmpl.Execute(prompt.Values{
			Threat:   threat,
			Evidence: evidence,
			Role:     role.Name,
			Goal:     role.Goal,
		})
		if err != nil {
			return nil, errors.MarkInput(errors.Wrapf(err, "stage %s instruction", def.ID))
		}

		var deps []ID
		for _, upstream := range bp.Dependencies[role.Name] {
			id, ok := stageOf[upstream]
			if !ok {
				return nil, errors.NewInputErrorf("role %s reads from %s, which does not run before it", role.Name, upstream)
			}
			deps = append(deps, id)
		}

		out = append(out, Stage{
			ID:             def.ID,
			Role:           role,
			Template:       def.Instruction,
			Instruction:    instruction,
			DependsOn:      deps,
			ExpectedOutput: def.ExpectedOutput,
		})
		stageOf[role.Name] = def.ID
	}

	if err := ValidateOrder(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateOrder checks that stage IDs are unique and every dependency
// appears strictly earlier in the sequence.
func ValidateOrder(stages []Stage) error {
	seen := make(map[ID]bool, len(stages))
	for i, s := range stages {
		if s.ID == "" {
			return errors.NewInputErrorf("stage %d has no id", i)
		}
		if seen[s.ID] {
			return errors.NewInputErrorf("duplicate stage %s", s.ID)
		}
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return errors.NewInputErrorf("stage %s depends on %s, which is not earlier in the order", s.ID, dep)
			}
		}
		seen[s.ID] = true
	}
	return nil
}

// Final returns the headline (report) stage: the last in order
func Final(stages []Stage) (Stage, bool) {
	if len(stages) == 0 {
		return Stage{}, false
	}
	return stages[len(stages)-1], true
}
