// Package testing provides deterministic test doubles shared across packages.
package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Call is one recorded generation request
type Call struct {
	Role   string
	Prompt string
}

// Response scripts what a role returns
type Response struct {
	Text  string
	Err   error
	Delay time.Duration
}

// ScriptedGenerator answers generation calls from a per-role script.
// Roles without a script answer "<role> output". Safe for concurrent use.
type ScriptedGenerator struct {
	mu          sync.Mutex
	script      map[string]Response
	calls       []Call
	inFlight    int
	maxInFlight int
}

// NewScriptedGenerator creates a generator with an empty script
func NewScriptedGenerator() *ScriptedGenerator {
	return &ScriptedGenerator{script: make(map[string]Response)}
}

// On scripts role to answer text
func (g *ScriptedGenerator) On(role, text string) *ScriptedGenerator {
	return g.Script(role, Response{Text: text})
}

// Fail scripts role to return err
func (g *ScriptedGenerator) Fail(role string, err error) *ScriptedGenerator {
	return g.Script(role, Response{Err: err})
}

// Script sets the full response for role
func (g *ScriptedGenerator) Script(role string, r Response) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.script[role] = r
	return g
}

// Generate implements the pipeline generation capability
func (g *ScriptedGenerator) Generate(ctx context.Context, roleDescription, prompt string) (string, error) {
	role := RoleFromDescription(roleDescription)

	g.mu.Lock()
	g.calls = append(g.calls, Call{Role: role, Prompt: prompt})
	r, ok := g.script[role]
	g.inFlight++
	if g.inFlight > g.maxInFlight {
		g.maxInFlight = g.inFlight
	}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if !ok {
		return fmt.Sprintf("%s output", role), nil
	}
	return r.Text, r.Err
}

// Calls returns the recorded calls in arrival order
func (g *ScriptedGenerator) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// CallCount returns the number of recorded calls
func (g *ScriptedGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// Called reports whether role was ever asked to generate
func (g *ScriptedGenerator) Called(role string) bool {
	for _, c := range g.Calls() {
		if c.Role == role {
			return true
		}
	}
	return false
}

// PromptFor returns the first prompt sent for role
func (g *ScriptedGenerator) PromptFor(role string) (string, bool) {
	for _, c := range g.Calls() {
		if c.Role == role {
			return c.Prompt, true
		}
	}
	return "", false
}

// MaxInFlight is the highest number of concurrent Generate calls observed
func (g *ScriptedGenerator) MaxInFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxInFlight
}

// RoleFromDescription extracts X from a role description starting "You are X."
func RoleFromDescription(desc string) string {
	line, _, _ := strings.Cut(desc, "\n")
	line = strings.TrimPrefix(line, "You are ")
	return strings.TrimSuffix(line, ".")
}
