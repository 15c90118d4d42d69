// Package provider defines the upstream completion client contract.
package provider

import (
	"context"
	"errors"
)

// ErrEmptyCompletion indicates the provider answered without any
// generated text.
var ErrEmptyCompletion = errors.New("provider returned an empty completion")

// Client is the behaviour required of an upstream text-generation
// provider. Implementations return the full generated text for one
// prompt; streaming re-chunking happens downstream.
type Client interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}
