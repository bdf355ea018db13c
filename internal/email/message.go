// Package email defines the parsed email data model shared by the parser,
// the Mandrill adapter and the delivery providers.
package email

// Email represents a parsed email message with all its components.
//
// Address lists hold formatted addresses ("Jane Doe <jane@example.com>").
// A nil list means the header was absent; an empty non-nil list means the
// header was present but carried no addresses.
type Email struct {
	From    []string
	To      []string
	Cc      []string
	Bcc     []string
	Subject string

	// TextBody and HtmlBody are the decoded text/plain and text/html parts
	// of a multipart message. HasTextPart and HasHTMLPart record that the
	// part exists, since a present part may be empty.
	TextBody    string
	HtmlBody    string
	HasTextPart bool
	HasHTMLPart bool

	// Body is the decoded message body as a whole. A single-part message
	// has no separate parts and keeps its content only here; for multipart
	// messages it is the raw multipart payload.
	Body string

	Attachments []Attachment
	RawHeaders  map[string][]string
	MessageID   string
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}
