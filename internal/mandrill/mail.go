// Package mandrill converts parsed mail messages into documents matching the
// Mandrill messages/send API schema.
//
// The conversion is a pure function of its input: a Message is built around
// one Mail, asked for its Document, and discarded. Nothing is shared between
// messages, so independent messages may be converted concurrently.
package mandrill

import (
	"net/textproto"
	"sort"
	"strings"

	"github.com/shineum/mandrill-dm/internal/email"
)

// Mail is the read-only view of a message that the adapter consumes.
type Mail interface {
	// AddressField returns the formatted addresses of an address header
	// (From, To, Cc, Bcc). ok is false when the header is absent.
	AddressField(name string) (addrs []string, ok bool)

	Subject() string

	// TextPart and HTMLPart return the decoded body part of that type.
	TextPart() (string, bool)
	HTMLPart() (string, bool)

	// Body returns the decoded message body as a whole.
	Body() string

	Attachments() []email.Attachment

	// Header looks up an arbitrary header. Names match case-insensitively,
	// with '_' and '-' treated as the same character.
	Header(name string) (string, bool)
}

// HeaderKey normalizes a header name for lookup: underscores become dashes
// and the result is put in canonical MIME form ("auto_text" -> "Auto-Text").
func HeaderKey(name string) string {
	return textproto.CanonicalMIMEHeaderKey(strings.ReplaceAll(name, "_", "-"))
}

// emailMail adapts an *email.Email to the Mail interface.
type emailMail struct {
	msg     *email.Email
	headers map[string][]string
}

// Wrap returns a Mail view over a parsed email. Raw header names that
// normalize to the same key are merged in sorted name order.
func Wrap(msg *email.Email) Mail {
	keys := make([]string, 0, len(msg.RawHeaders))
	for key := range msg.RawHeaders {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	headers := make(map[string][]string, len(keys))
	for _, key := range keys {
		k := HeaderKey(key)
		headers[k] = append(headers[k], msg.RawHeaders[key]...)
	}
	return &emailMail{msg: msg, headers: headers}
}

func (m *emailMail) AddressField(name string) ([]string, bool) {
	var addrs []string
	switch HeaderKey(name) {
	case "From":
		addrs = m.msg.From
	case "To":
		addrs = m.msg.To
	case "Cc":
		addrs = m.msg.Cc
	case "Bcc":
		addrs = m.msg.Bcc
	default:
		return nil, false
	}
	return addrs, addrs != nil
}

func (m *emailMail) Subject() string { return m.msg.Subject }

// TextPart reports the text/plain part. A non-empty TextBody counts as
// present even when HasTextPart was not set.
func (m *emailMail) TextPart() (string, bool) {
	return m.msg.TextBody, m.msg.HasTextPart || m.msg.TextBody != ""
}

func (m *emailMail) HTMLPart() (string, bool) {
	return m.msg.HtmlBody, m.msg.HasHTMLPart || m.msg.HtmlBody != ""
}

func (m *emailMail) Body() string { return m.msg.Body }

func (m *emailMail) Attachments() []email.Attachment { return m.msg.Attachments }

// Header returns the first value of the named header. A header that is
// present with an empty value reports ok == true.
func (m *emailMail) Header(name string) (string, bool) {
	values, ok := m.headers[HeaderKey(name)]
	if !ok {
		return "", false
	}
	if len(values) == 0 {
		return "", true
	}
	return values[0], true
}
