package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/roles"
)

func TestDOT_RoundTrip(t *testing.T) {
	bp, _ := Builtin(FullName)
	out, err := bp.Plan("Ransomware", "", roles.Default())
	require.NoError(t, err)

	dot, err := DOT(bp.Name, out)
	require.NoError(t, err)
	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, `"analysis"->"report"`)

	table, err := ParseGraph(dot)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"analysis", "mitigation", "research", "explanation"}, table["report"])
	assert.Equal(t, []string{"analysis"}, table["mitigation"])
	assert.Empty(t, table["analysis"])
}

func TestParseGraph_Errors(t *testing.T) {
	_, err := ParseGraph("graph g { a -- b; }")
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))

	_, err = ParseGraph("digraph {")
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))
}
