package ai

import "context"

// Generator produces text from system instructions and a user payload.
// Implementations may fail; callers must degrade gracefully.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}
