// Package provider defines the interface for message conversion backends.
package provider

import (
	"context"

	"github.com/shineum/mandrill-dm/internal/email"
)

// Provider is the interface that conversion backends must implement.
// Each provider takes a parsed message and hands the converted result to
// its destination (e.g., stdout, a spool directory, an S3 bucket).
type Provider interface {
	// Send converts and stores one message.
	// It returns an error if conversion or storage fails.
	Send(ctx context.Context, msg *email.Email) error

	// Name returns the human-readable name of this provider.
	Name() string
}
