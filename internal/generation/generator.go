// Package generation composes the policy prompt around a retrieved context and
// hands it to a text generation model.
package generation

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrNoGenerator is returned when generation is requested but not configured.
	ErrNoGenerator = errors.New("text generation is not configured")
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
