// Package llm provides the text-generation backend used by the extraction client.
package llm

import "context"

// Request is a single-turn generation request.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int64
}

// Generator produces free text for a prompt. Implementations make exactly
// one call per Generate; they never retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
