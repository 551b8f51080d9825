// Package pipeline executes an ordered list of stages against a text
// generation capability.
//
// Each stage's prompt is its own instruction plus the verbatim output of every
// stage it depends on. Outputs are collected into a Result keyed by stage ID.
// The first failure aborts the run: no later stage is issued and the error
// names the failing stage.
package pipeline

import "context"

// Generator is the text-generation capability. Implementations own retries;
// the executor never retries a failed call.
type Generator interface {
	Generate(ctx context.Context, roleDescription, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, roleDescription, prompt string) (string, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, roleDescription, prompt string) (string, error) {
	return f(ctx, roleDescription, prompt)
}
