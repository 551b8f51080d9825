package display

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldOutputJSON(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "roles"}
		cmd.Flags().Bool("json", false, "")
		return cmd
	}

	tests := []struct {
		name string
		args []string
		env  string
		want bool
	}{
		{"default", nil, "", false},
		{"flag", []string{"--json"}, "", true},
		{"env", nil, "json", true},
		{"env uppercase", nil, "JSON", true},
		{"flag off beats env", []string{"--json=false"}, "json", false},
		{"other env value", nil, "table", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(OutputEnv, tt.env)
			cmd := newCmd()
			require.NoError(t, cmd.Flags().Parse(tt.args))
			assert.Equal(t, tt.want, ShouldOutputJSON(cmd))
		})
	}

	t.Setenv(OutputEnv, "")
	assert.False(t, ShouldOutputJSON(nil))
	assert.False(t, ShouldOutputJSON(&cobra.Command{}))
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, OutputJSON(&buf, map[string]int{"stages": 5}))
	assert.Equal(t, "{\n  \"stages\": 5\n}\n", buf.String())
}
