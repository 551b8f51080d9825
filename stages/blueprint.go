package stages

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/prompt"
	"github.com/teranos/threatbrief/roles"
)

// Definition is the static part of a stage, bound to a role by name
type Definition struct {
	ID             ID     `yaml:"id"`
	Role           string `yaml:"role"`
	Instruction    string `yaml:"instruction"`
	ExpectedOutput string `yaml:"expected_output"`
}

// DependencyTable maps a role to the roles whose output it reads
type DependencyTable map[string][]string

// Blueprint is a named set of stage definitions plus the explicit
// role→role dependency table that wires them.
type Blueprint struct {
	Name         string
	Description  string
	Definitions  []Definition
	Dependencies DependencyTable
}

func (bp *Blueprint) definition(role string) (Definition, bool) {
	for _, d := range bp.Definitions {
		if d.Role == role {
			return d, true
		}
	}
	return Definition{}, false
}

// Validate checks the blueprint is self-consistent: unique stage IDs and
// roles, parseable instructions, and dependencies that only point to roles
// defined earlier.
func (bp *Blueprint) Validate() error {
	if bp.Name == "" {
		return errors.NewInputErrorf("blueprint has no name")
	}
	if len(bp.Definitions) == 0 {
		return errors.NewInputErrorf("blueprint %s defines no stages", bp.Name)
	}

	position := make(map[string]int, len(bp.Definitions))
	ids := make(map[ID]bool, len(bp.Definitions))
	for i, d := range bp.Definitions {
		if d.ID == "" || strings.ContainsAny(string(d.ID), " \t\n") {
			return errors.NewInputErrorf("blueprint %s: stage %d has an invalid id %q", bp.Name, i, d.ID)
		}
		if ids[d.ID] {
			return errors.NewInputErrorf("blueprint %s: duplicate stage id %s", bp.Name, d.ID)
		}
		if d.Role == "" {
			return errors.NewInputErrorf("blueprint %s: stage %s has no role", bp.Name, d.ID)
		}
		if _, dup := position[d.Role]; dup {
			return errors.NewInputErrorf("blueprint %s: role %s has more than one stage", bp.Name, d.Role)
		}
		if err := prompt.ValidateTemplate(d.Instruction); err != nil {
			return errors.MarkInput(errors.Wrapf(err, "blueprint %s: stage %s", bp.Name, d.ID))
		}
		ids[d.ID] = true
		position[d.Role] = i
	}

	for role, upstream := range bp.Dependencies {
		at, ok := position[role]
		if !ok {
			return errors.NewInputErrorf("blueprint %s: dependency table names unknown role %s", bp.Name, role)
		}
		for _, u := range upstream {
			from, ok := position[u]
			if !ok {
				return errors.NewInputErrorf("blueprint %s: %s reads from unknown role %s", bp.Name, role, u)
			}
			if from >= at {
				return errors.NewInputErrorf("blueprint %s: %s reads from %s, which is not defined before it", bp.Name, role, u)
			}
		}
	}
	return nil
}

// SelectRoles returns the registry roles this blueprint uses, in stage order
func (bp *Blueprint) SelectRoles(reg *roles.Registry) ([]roles.Role, error) {
	out := make([]roles.Role, 0, len(bp.Definitions))
	for _, d := range bp.Definitions {
		r, ok := reg.Lookup(d.Role)
		if !ok {
			return nil, errors.NewInputErrorf("blueprint %s needs role %s, missing from registry %s", bp.Name, d.Role, reg.Version())
		}
		out = append(out, r)
	}
	return out, nil
}

// Plan is SelectRoles followed by Build
func (bp *Blueprint) Plan(threat, evidence string, reg *roles.Registry) ([]Stage, error) {
	rs, err := bp.SelectRoles(reg)
	if err != nil {
		return nil, err
	}
	return bp.Build(threat, evidence, rs)
}

// blueprintFile is the YAML layout of a blueprint file.
// Dependencies may be given as a table or as a DOT digraph in graph.
type blueprintFile struct {
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description"`
	Stages       []Definition    `yaml:"stages"`
	Dependencies DependencyTable `yaml:"dependencies"`
	Graph        string          `yaml:"graph"`
}

// Parse reads a YAML blueprint
func Parse(data []byte) (*Blueprint, error) {
	var f blueprintFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.MarkInput(errors.Wrap(err, "invalid blueprint YAML"))
	}

	deps := f.Dependencies
	if strings.TrimSpace(f.Graph) != "" {
		if len(deps) > 0 {
			return nil, errors.NewInputErrorf("blueprint %s sets both dependencies and graph", f.Name)
		}
		var err error
		if deps, err = ParseGraph(f.Graph); err != nil {
			return nil, err
		}
	}

	bp := &Blueprint{
		Name:         f.Name,
		Description:  f.Description,
		Definitions:  f.Stages,
		Dependencies: deps,
	}
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return bp, nil
}

// Load reads a YAML blueprint file
func Load(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read blueprint %s", path)
	}
	bp, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "blueprint %s", filepath.Base(path))
	}
	return bp, nil
}

// Resolve returns a built-in blueprint by name, or loads nameOrPath as a file
func Resolve(nameOrPath string) (*Blueprint, error) {
	if nameOrPath == "" {
		nameOrPath = FullName
	}
	if bp, ok := Builtin(nameOrPath); ok {
		return bp, nil
	}
	if ext := filepath.Ext(nameOrPath); ext != ".yaml" && ext != ".yml" {
		return nil, errors.WithHintf(errors.NewInputErrorf("unknown blueprint %q", nameOrPath),
			"use one of %s, or a path to a .yaml blueprint", strings.Join(BuiltinNames(), ", "))
	}
	return Load(nameOrPath)
}
