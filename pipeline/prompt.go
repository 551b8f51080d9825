package pipeline

import (
	"fmt"
	"strings"

	"github.com/teranos/threatbrief/stages"
)

// assemblePrompt appends each dependency's output, verbatim and in declared
// order, to the stage instruction. Callers guarantee every dependency is in res.
func assemblePrompt(st stages.Stage, roleNames map[stages.ID]string, res *Result) string {
	var b strings.Builder
	b.WriteString(st.Instruction)

	if st.ExpectedOutput != "" {
		b.WriteString("\n\nExpected output:\n")
		b.WriteString(st.ExpectedOutput)
	}

	if len(st.DependsOn) > 0 {
		b.WriteString("\n\nContext from earlier stages:")
	}
	for _, dep := range st.DependsOn {
		text, _ := res.Get(dep)
		fmt.Fprintf(&b, "\n\n### Output of %s (%s)\n%s", dep, roleNames[dep], text)
	}
	return b.String()
}
