package stages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/roles"
)

const sampleEvidence = `{"source_ip":"10.0.0.5","confidence":0.97,"indicators":["beacon","dns-tunnel"]}`

func plan(t *testing.T, name, threat, evidence string) []Stage {
	t.Helper()
	bp, ok := Builtin(name)
	require.True(t, ok)
	out, err := bp.Plan(threat, evidence, roles.Default())
	require.NoError(t, err)
	return out
}

func ids(stages []Stage) []ID {
	out := make([]ID, len(stages))
	for i, s := range stages {
		out[i] = s.ID
	}
	return out
}

func TestBuild_Full(t *testing.T) {
	out := plan(t, FullName, "Ransomware", sampleEvidence)

	assert.Equal(t, []ID{"analysis", "mitigation", "research", "explanation", "report"}, ids(out))
	assert.Empty(t, out[0].DependsOn)
	assert.Equal(t, []ID{"analysis"}, out[1].DependsOn)
	assert.Equal(t, []ID{"analysis"}, out[2].DependsOn)
	assert.Equal(t, []ID{"analysis"}, out[3].DependsOn)
	assert.Equal(t, []ID{"analysis", "mitigation", "research", "explanation"}, out[4].DependsOn)

	final, ok := Final(out)
	require.True(t, ok)
	assert.Equal(t, roles.ReportGenerator, final.Role.Name)
	require.NoError(t, ValidateOrder(out))
}

func TestBuild_Compact(t *testing.T) {
	out := plan(t, CompactName, "Phishing", sampleEvidence)

	assert.Equal(t, []ID{"analyze", "mitigate", "report"}, ids(out))
	assert.Empty(t, out[0].DependsOn)
	assert.Equal(t, []ID{"analyze"}, out[1].DependsOn)
	assert.Equal(t, []ID{"analyze", "mitigate"}, out[2].DependsOn)
}

func TestBuild_DependenciesPointBackwards(t *testing.T) {
	for _, name := range BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			out := plan(t, name, "DDoS", "")
			pos := map[ID]int{}
			for i, s := range out {
				for _, dep := range s.DependsOn {
					at, ok := pos[dep]
					require.True(t, ok, "%s depends on %s which is not earlier", s.ID, dep)
					assert.Less(t, at, i)
				}
				pos[s.ID] = i
			}
		})
	}
}

func TestBuild_DefaultThreat(t *testing.T) {
	for _, threat := range []string{"", "   "} {
		out := plan(t, CompactName, threat, "")
		assert.Contains(t, out[0].Instruction, "Analyze the detected threat: Safe")
		assert.NotContains(t, out[0].Instruction, "{{threat}}")
	}
}

func TestBuild_EvidenceVerbatim(t *testing.T) {
	out := plan(t, FullName, "Ransomware", sampleEvidence)

	assert.Contains(t, out[0].Instruction, sampleEvidence)
	assert.NotContains(t, out[2].Instruction, sampleEvidence, "research does not see evidence")
	assert.Contains(t, out[4].Instruction, sampleEvidence)
	assert.Contains(t, out[0].Template, "{{evidence}}")
}

func TestBuild_InvalidEvidence(t *testing.T) {
	bp, _ := Builtin(FullName)
	out, err := bp.Plan("Ransomware", "not json {", roles.Default())
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))
	assert.Nil(t, out)
}

func TestBuild_RoleOrderViolation(t *testing.T) {
	bp, _ := Builtin(CompactName)
	reg := roles.Default()
	report, _ := reg.Lookup(roles.ReportGenerator)
	analyzer, _ := reg.Lookup(roles.ThreatAnalyzer)

	_, err := bp.Build("x", "", []roles.Role{report, analyzer})
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))
}

func TestBuild_MissingRole(t *testing.T) {
	reg, err := roles.New("trimmed", []roles.Role{{Name: roles.ThreatAnalyzer, Goal: "g"}})
	require.NoError(t, err)

	bp, _ := Builtin(CompactName)
	_, err = bp.Plan("x", "", reg)
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name    string
		stages  []Stage
		wantErr bool
	}{
		{"empty", nil, false},
		{"chain", []Stage{{ID: "a"}, {ID: "b", DependsOn: []ID{"a"}}}, false},
		{"forward reference", []Stage{{ID: "a", DependsOn: []ID{"b"}}, {ID: "b"}}, true},
		{"self reference", []Stage{{ID: "a", DependsOn: []ID{"a"}}}, true},
		{"duplicate", []Stage{{ID: "a"}, {ID: "a"}}, true},
		{"missing id", []Stage{{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrder(tt.stages)
			if tt.wantErr {
				assert.True(t, errors.IsInputError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuiltin_ReturnsCopy(t *testing.T) {
	a, _ := Builtin(FullName)
	a.Definitions[0].ID = "changed"
	a.Dependencies[roles.ReportGenerator][0] = "changed"

	b, _ := Builtin(FullName)
	assert.Equal(t, ID("analysis"), b.Definitions[0].ID)
	assert.Equal(t, roles.ThreatAnalyzer, b.Dependencies[roles.ReportGenerator][0])
	require.NoError(t, b.Validate())
}

const yamlBlueprint = `
name: triage
description: two step triage
stages:
  - id: classify
    role: Threat_Analyzer_Agent
    instruction: "Classify {{threat}} from {{evidence.source_ip}}"
    expected_output: a label
  - id: brief
    role: Report_Generator_Agent
    instruction: "Brief on {{threat}}"
`

func TestParse_DependencyTable(t *testing.T) {
	bp, err := Parse([]byte(yamlBlueprint + `
dependencies:
  Report_Generator_Agent: [Threat_Analyzer_Agent]
`))
	require.NoError(t, err)

	out, err := bp.Plan("Port scan", sampleEvidence, roles.Default())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Classify Port scan from 10.0.0.5", out[0].Instruction)
	assert.Equal(t, []ID{"classify"}, out[1].DependsOn)
}

func TestParse_Graph(t *testing.T) {
	bp, err := Parse([]byte(yamlBlueprint + `
graph: |
  digraph triage {
    "Threat_Analyzer_Agent" -> "Report_Generator_Agent";
  }
`))
	require.NoError(t, err)
	assert.Equal(t, []string{roles.ThreatAnalyzer}, bp.Dependencies[roles.ReportGenerator])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"both table and graph", yamlBlueprint + `
dependencies:
  Report_Generator_Agent: [Threat_Analyzer_Agent]
graph: "digraph g { a -> b; }"
`},
		{"backward edge", yamlBlueprint + `
dependencies:
  Threat_Analyzer_Agent: [Report_Generator_Agent]
`},
		{"unknown role", yamlBlueprint + `
dependencies:
  Report_Generator_Agent: [Nobody]
`},
		{"bad placeholder", `
name: broken
stages:
  - id: a
    role: Threat_Analyzer_Agent
    instruction: "{{nope}}"
`},
		{"no stages", "name: empty\n"},
		{"not yaml", "name: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.IsInputError(err), "got %v", err)
		})
	}
}

func TestResolve(t *testing.T) {
	bp, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, FullName, bp.Name)

	bp, err = Resolve(CompactName)
	require.NoError(t, err)
	assert.Equal(t, CompactName, bp.Name)

	_, err = Resolve("bogus")
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))
	assert.Contains(t, strings.Join(errors.GetAllHints(err), " "), "compact, full")

	path := filepath.Join(t.TempDir(), "triage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlBlueprint), 0o644))
	bp, err = Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "triage", bp.Name)

	_, err = Resolve(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
