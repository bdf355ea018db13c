// Package outbox stores rendered Mandrill documents for a downstream sender.
package outbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Outbox is the interface that document sinks must implement.
type Outbox interface {
	// Put stores one document under key. Storing twice under the same key
	// replaces the earlier document.
	Put(ctx context.Context, key string, doc []byte) error

	// Name returns the human-readable name of this outbox.
	Name() string
}

// keySpace namespaces document keys derived from Message-Ids.
var keySpace = uuid.MustParse("5d3e8a4c-6f1b-4c8e-9a57-2b0f7d61c9e3")

// NewKey returns the storage key for a message. Messages with a Message-Id
// get a stable name-based key, so converting the same message twice
// overwrites its document. Messages without one get a random key.
func NewKey(messageID string) string {
	id := strings.Trim(strings.TrimSpace(messageID), "<>")
	if id == "" {
		return uuid.NewString() + ".json"
	}
	return uuid.NewSHA1(keySpace, []byte(id)).String() + ".json"
}

// ErrorReason classifies outbox failures.
type ErrorReason string

const (
	ReasonUnknown      ErrorReason = "UNKNOWN_ERROR"
	ReasonInvalidKey   ErrorReason = "INVALID_KEY"
	ReasonAccessDenied ErrorReason = "ACCESS_DENIED"
	ReasonNotFound     ErrorReason = "NOT_FOUND"
	ReasonThrottled    ErrorReason = "THROTTLED"
	ReasonService      ErrorReason = "SERVICE_ERROR"
	ReasonIO           ErrorReason = "IO_ERROR"
)

var _ error = &Error{}

// Error is returned by outboxes when a document cannot be stored.
type Error struct {
	Outbox string
	Key    string
	Reason ErrorReason
	Cause  error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s outbox: %s: key %q", e.Outbox, e.Reason, e.Key)
	if e.Cause != nil {
		s += fmt.Sprintf(": %s", e.Cause)
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an *Error.
func NewError(outbox, key string, reason ErrorReason, cause error) *Error {
	return &Error{
		Outbox: outbox,
		Key:    key,
		Reason: reason,
		Cause:  cause,
	}
}

// ValidKey reports whether key is a relative, slash-separated path that
// stays inside the outbox root.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "" {
			return false
		}
	}
	return true
}
