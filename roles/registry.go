package roles

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teranos/threatbrief/errors"
)

// DefaultVersion identifies the built-in role set
const DefaultVersion = "builtin-5"

// Registry is an ordered, versioned, read-only set of roles
type Registry struct {
	version string
	roles   []Role
	byName  map[string]int
}

// New validates roles and builds a registry.
// Names must be unique and non-empty, every role needs a goal, and delegation must be off.
func New(version string, roles []Role) (*Registry, error) {
	if len(roles) == 0 {
		return nil, errors.NewInputErrorf("role registry %q is empty", version)
	}

	r := &Registry{
		version: version,
		roles:   make([]Role, 0, len(roles)),
		byName:  make(map[string]int, len(roles)),
	}
	for i, role := range roles {
		role.Name = strings.TrimSpace(role.Name)
		if role.Name == "" {
			return nil, errors.NewInputErrorf("role %d has no name", i)
		}
		if strings.TrimSpace(role.Goal) == "" {
			return nil, errors.NewInputErrorf("role %s has no goal", role.Name)
		}
		if role.AllowDelegation {
			return nil, errors.WithHint(
				errors.NewInputErrorf("role %s enables delegation", role.Name),
				"roles only exchange text through stage dependencies; set allow_delegation: false")
		}
		if _, dup := r.byName[role.Name]; dup {
			return nil, errors.NewInputErrorf("duplicate role %s", role.Name)
		}
		r.byName[role.Name] = len(r.roles)
		r.roles = append(r.roles, role)
	}
	return r, nil
}

// Default returns the built-in five-role registry
func Default() *Registry {
	r, err := New(DefaultVersion, defaults)
	if err != nil {
		panic(err) // built-in data
	}
	return r
}

// Version identifies this role set
func (r *Registry) Version() string {
	return r.version
}

// List returns the roles in registry order
func (r *Registry) List() []Role {
	out := make([]Role, len(r.roles))
	copy(out, r.roles)
	return out
}

// Lookup finds a role by name
func (r *Registry) Lookup(name string) (Role, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Role{}, false
	}
	return r.roles[i], true
}

// Len returns the number of roles
func (r *Registry) Len() int {
	return len(r.roles)
}

// file is the YAML layout of a role registry file
type file struct {
	Version string `yaml:"version"`
	Roles   []Role `yaml:"roles"`
}

// Parse reads a YAML role registry.
//
//	version: soc-2025
//	roles:
//	  - name: Threat_Analyzer_Agent
//	    goal: ...
//	    constraint: Use only the provided data; do not speculate.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.MarkInput(errors.Wrap(err, "invalid role registry YAML"))
	}
	if f.Version == "" {
		f.Version = "unversioned"
	}
	return New(f.Version, f.Roles)
}

// Load reads a YAML role registry from path
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read role registry %s", path)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "role registry %s", path)
	}
	return r, nil
}

// LoadOrDefault loads path, or returns the built-in registry when path is empty
func LoadOrDefault(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
