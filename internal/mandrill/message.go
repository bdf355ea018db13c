package mandrill

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Document is the Mandrill messages/send "message" object. Fields are in
// key order; nil pointers and maps encode as JSON null.
type Document struct {
	AutoHTML           *bool             `json:"auto_html"`
	AutoText           *bool             `json:"auto_text"`
	BccAddress         *string           `json:"bcc_address"`
	FromEmail          *string           `json:"from_email"`
	FromName           *string           `json:"from_name"`
	Headers            map[string]string `json:"headers"`
	HTML               *string           `json:"html"`
	Important          bool              `json:"important"`
	InlineCSS          *bool             `json:"inline_css"`
	Merge              *bool             `json:"merge"`
	MergeLanguage      *string           `json:"merge_language"`
	Metadata           map[string]any    `json:"metadata"`
	PreserveRecipients *bool             `json:"preserve_recipients"`
	ReturnPathDomain   *string           `json:"return_path_domain"`
	SigningDomain      *string           `json:"signing_domain"`
	Subaccount         *string           `json:"subaccount"`
	Subject            string            `json:"subject"`
	Tags               []string          `json:"tags"`
	Text               string            `json:"text"`
	To                 []Recipient       `json:"to"`
	TrackClicks        *bool             `json:"track_clicks"`
	TrackOpens         *bool             `json:"track_opens"`
	TrackingDomain     *string           `json:"tracking_domain"`
	URLStripQS         *bool             `json:"url_strip_qs"`
	ViewContentLink    *bool             `json:"view_content_link"`
	Attachments        []Attachment      `json:"attachments,omitempty"`
}

type options struct {
	metadataMode   MetadataMode
	emptyTagMarker bool
	logger         *slog.Logger
}

// Option configures a Message.
type Option func(*options)

// WithMetadataMode selects how the "metadata" header is parsed. The default
// is MetadataAuto.
func WithMetadataMode(mode MetadataMode) Option {
	return func(o *options) { o.metadataMode = mode }
}

// WithEmptyTagPlaceholder makes a mail without tags produce [""] instead of
// []. Older consumers of this output relied on the single empty tag.
func WithEmptyTagPlaceholder() Option {
	return func(o *options) { o.emptyTagMarker = true }
}

// WithLogger sets the logger used to report deprecated input forms.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Message converts one Mail into a Document.
type Message struct {
	mail Mail
	opts options
}

// NewMessage returns a Message for m.
func NewMessage(m Mail, opts ...Option) *Message {
	o := options{metadataMode: MetadataAuto}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Message{mail: m, opts: o}
}

// Recipients returns the to, cc and bcc recipients as one flat list.
func (m *Message) Recipients() ([]Recipient, error) {
	return allRecipients(m.mail)
}

// Headers returns the allow-listed headers present on the mail.
func (m *Message) Headers() map[string]string {
	return harvestHeaders(m.mail)
}

// Tags returns the entries of the "tags" header.
func (m *Message) Tags() []string {
	raw, _ := m.mail.Header("tags")
	return splitTags(raw, m.opts.emptyTagMarker)
}

// Metadata returns the parsed "metadata" header, or nil when it is absent.
func (m *Message) Metadata() (map[string]any, error) {
	raw, ok := m.mail.Header("metadata")
	if !ok {
		return nil, nil
	}
	md, err := ParseMetadata(raw, m.opts.metadataMode)
	if err != nil {
		return nil, err
	}
	if md.Legacy && m.opts.metadataMode != MetadataLegacy {
		m.opts.logger.Warn("metadata parsed with deprecated hash-literal syntax",
			"metadata", raw,
		)
	}
	return md.Values, nil
}

// HTML returns the HTML part, or nil when the mail has none.
func (m *Message) HTML() *string {
	if html, ok := m.mail.HTMLPart(); ok {
		return &html
	}
	return nil
}

// Text returns the text part, falling back to the whole decoded body.
func (m *Message) Text() string {
	if text, ok := m.mail.TextPart(); ok {
		return text
	}
	return m.mail.Body()
}

// Document assembles the complete document.
func (m *Message) Document() (*Document, error) {
	to, err := m.Recipients()
	if err != nil {
		return nil, err
	}

	from, hasFrom, err := sender(m.mail)
	if err != nil {
		return nil, err
	}

	metadata, err := m.Metadata()
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Headers:     m.Headers(),
		HTML:        m.HTML(),
		Important:   important(m.mail),
		Metadata:    metadata,
		Subject:     m.mail.Subject(),
		Tags:        m.Tags(),
		Text:        m.Text(),
		To:          to,
		Attachments: encodeAttachments(m.mail.Attachments()),
	}
	if hasFrom {
		doc.FromEmail = &from.Email
		doc.FromName = optionalString(from.DisplayName)
	}
	for _, f := range triStateFields {
		f.set(doc, triState(m.mail, f.header))
	}
	for _, f := range stringFields {
		f.set(doc, passthrough(m.mail, f.header))
	}

	return doc, nil
}

// JSON returns the compact JSON encoding of the document.
func (m *Message) JSON() ([]byte, error) {
	doc, err := m.Document()
	if err != nil {
		return nil, err
	}
	return doc.Marshal(false)
}

// Marshal encodes the document without escaping HTML characters, so bodies
// keep their literal '<', '>' and '&'.
func (d *Document) Marshal(indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
