// Package spool implements a Provider that converts messages into Mandrill
// documents and stores them in an outbox.
package spool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shineum/mandrill-dm/internal/email"
	"github.com/shineum/mandrill-dm/internal/mandrill"
	"github.com/shineum/mandrill-dm/internal/outbox"
)

// Provider renders each message and puts it in the outbox under a key
// derived from its Message-Id.
type Provider struct {
	outbox outbox.Outbox
	pretty bool
	opts   []mandrill.Option
}

// New creates a Provider writing to box. When pretty is set, documents are
// indented before they are stored.
func New(box outbox.Outbox, pretty bool, opts ...mandrill.Option) *Provider {
	return &Provider{
		outbox: box,
		pretty: pretty,
		opts:   opts,
	}
}

// Send converts msg and stores the document. Conversion failures wrap a
// *mandrill.AddressError or *mandrill.MetadataParseError; storage failures
// wrap an *outbox.Error.
func (p *Provider) Send(ctx context.Context, msg *email.Email) error {
	doc, err := mandrill.NewMessage(mandrill.Wrap(msg), p.opts...).Document()
	if err != nil {
		return fmt.Errorf("failed to convert message %s: %w", describe(msg), err)
	}

	data, err := doc.Marshal(p.pretty)
	if err != nil {
		return err
	}

	key := outbox.NewKey(msg.MessageID)
	if err := p.outbox.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to store message %s: %w", describe(msg), err)
	}

	slog.Debug("message stored",
		"outbox", p.outbox.Name(),
		"key", key,
		"message_id", msg.MessageID,
		"recipients", len(doc.To),
		"attachments", len(doc.Attachments),
	)
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "spool/" + p.outbox.Name()
}

func describe(msg *email.Email) string {
	if msg.MessageID != "" {
		return msg.MessageID
	}
	return fmt.Sprintf("%q", msg.Subject)
}
