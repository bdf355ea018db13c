// Package parser provides RFC 5322 email message parsing with MIME multipart support.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/textproto"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/shineum/mandrill-dm/internal/email"
)

// addressHeaders are parsed into the Email address lists.
var addressHeaders = []string{"From", "To", "Cc", "Bcc"}

// Parse parses a raw RFC 5322 email message into an Email struct.
// Transfer encodings and charsets are decoded. Address headers keep their
// formatted form so callers can report the exact mailbox that failed to
// parse. Unrecognized MIME parts are logged as warnings.
func Parse(raw []byte) (*email.Email, error) {
	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil {
		if !gomessage.IsUnknownCharset(err) && !gomessage.IsUnknownEncoding(err) {
			return nil, fmt.Errorf("failed to parse message: %w", err)
		}
		slog.Warn("message uses an unknown charset or encoding, keeping raw content",
			"error", err,
		)
	}

	header := mail.Header{Header: entity.Header}
	result := &email.Email{
		RawHeaders: make(map[string][]string),
	}

	fields := entity.Header.Fields()
	for fields.Next() {
		key := textproto.CanonicalMIMEHeaderKey(fields.Key())
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		result.RawHeaders[key] = append(result.RawHeaders[key], value)
	}

	for _, key := range addressHeaders {
		list := parseAddressList(header, key)
		switch key {
		case "From":
			result.From = list
		case "To":
			result.To = list
		case "Cc":
			result.Cc = list
		case "Bcc":
			result.Bcc = list
		}
	}

	if subject, err := header.Subject(); err == nil {
		result.Subject = subject
	} else {
		result.Subject = header.Get("Subject")
	}
	result.MessageID = header.Get("Message-Id")

	mediaType, params, err := contentType(entity.Header)
	if err != nil {
		// If content type is unparseable, treat as plain text
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", entity.Header.Get("Content-Type"),
			"error", err,
		)
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if params["boundary"] == "" {
			return nil, errors.New("multipart message missing boundary")
		}
		result.Body = string(rawBody(raw))
		if err := parseMultipart(entity.MultipartReader(), result); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return result, nil
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	// A single-part message has no text or HTML part of its own; whatever
	// its type, the content is the body.
	result.Body = string(body)

	if mediaType != "text/plain" && mediaType != "text/html" {
		slog.Warn("unrecognized top-level content type",
			"content_type", mediaType,
		)
	}

	return result, nil
}

// parseMultipart processes a multipart MIME body, extracting the first
// text/plain and text/html parts and all attachments. Nested multiparts are
// walked depth first.
func parseMultipart(mr gomessage.MultipartReader, result *email.Email) error {
	if mr == nil {
		return nil
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !gomessage.IsUnknownCharset(err) && !gomessage.IsUnknownEncoding(err) {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		mediaType, params, err := contentType(part.Header)
		if err != nil {
			slog.Warn("failed to parse part content type, skipping",
				"content_type", part.Header.Get("Content-Type"),
				"error", err,
			)
			continue
		}

		// Check for nested multipart
		if strings.HasPrefix(mediaType, "multipart/") {
			nested := part.MultipartReader()
			if nested == nil {
				slog.Warn("nested multipart missing boundary, skipping")
				continue
			}
			if err := parseMultipart(nested, result); err != nil {
				slog.Warn("failed to parse nested multipart",
					"error", err,
				)
			}
			continue
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			slog.Warn("failed to read part content",
				"content_type", mediaType,
				"error", err,
			)
			continue
		}

		disposition, _, _ := part.Header.ContentDisposition()
		if disposition == "attachment" {
			result.Attachments = append(result.Attachments, email.Attachment{
				Filename:    extractFilename(part.Header, mediaType, params),
				ContentType: mediaType,
				Content:     content,
			})
			continue
		}

		switch mediaType {
		case "text/plain":
			if !result.HasTextPart {
				result.TextBody = string(content)
				result.HasTextPart = true
			}
		case "text/html":
			if !result.HasHTMLPart {
				result.HtmlBody = string(content)
				result.HasHTMLPart = true
			}
		default:
			// Inline parts with a name are still attachments
			if hasFilename(part.Header, params) {
				result.Attachments = append(result.Attachments, email.Attachment{
					Filename:    extractFilename(part.Header, mediaType, params),
					ContentType: mediaType,
					Content:     content,
				})
			} else {
				slog.Warn("unrecognized MIME part, skipping",
					"content_type", mediaType,
					"disposition", disposition,
				)
			}
		}
	}

	return nil
}

// contentType returns the media type of h, defaulting to text/plain when
// the header is missing.
func contentType(h gomessage.Header) (string, map[string]string, error) {
	if h.Get("Content-Type") == "" {
		return "text/plain", map[string]string{}, nil
	}
	return h.ContentType()
}

func hasFilename(h gomessage.Header, params map[string]string) bool {
	ah := mail.AttachmentHeader{Header: h}
	name, _ := ah.Filename()
	return name != "" || params["name"] != ""
}

// extractFilename returns the part's filename from Content-Disposition,
// then the Content-Type "name" parameter, then a name derived from the
// media type.
func extractFilename(h gomessage.Header, mediaType string, params map[string]string) string {
	ah := mail.AttachmentHeader{Header: h}
	if name, err := ah.Filename(); err == nil && name != "" {
		return name
	}
	if name := params["name"]; name != "" {
		return name
	}
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return "attachment." + sub
	}
	return "attachment"
}

// parseAddressList returns the formatted addresses of one header. It
// returns nil when the header is absent. A list that does not parse is
// split on commas and kept verbatim so the bad entry surfaces downstream.
func parseAddressList(h mail.Header, key string) []string {
	if !h.Has(key) {
		return nil
	}

	addresses, err := h.AddressList(key)
	if err != nil {
		raw := h.Get(key)
		slog.Warn("failed to parse address list, keeping raw entries",
			"header", key,
			"error", err,
		)
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, addr.String())
	}
	return result
}

// rawBody returns everything after the header block.
func rawBody(raw []byte) []byte {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[i+4:]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[i+2:]
	}
	return nil
}
