// Package ai defines the narrow boundary to the generative model. The model
// is treated as an untrusted, non-deterministic oracle: callers own all
// parsing and recovery of its output.
package ai

import (
	"context"
	"errors"
)

// ErrProviderConfig marks missing or unusable provider credentials. It is
// raised on first use of the client, not at process start, and is fatal for
// the whole batch rather than a per-file failure.
var ErrProviderConfig = errors.New("model provider is not configured")

// Generator produces a single text completion for a prompt.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}
