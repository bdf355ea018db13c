package mandrill

import (
	"encoding/base64"
	"strings"

	"github.com/shineum/mandrill-dm/internal/email"
)

// base64LineLen is the number of encoded characters per line of MIME
// base64 output.
const base64LineLen = 60

// Attachment is one entry of the document's "attachments" array.
type Attachment struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// encodeAttachments returns nil when there are no attachments so the
// document omits the key entirely.
func encodeAttachments(atts []email.Attachment) []Attachment {
	if len(atts) == 0 {
		return nil
	}
	out := make([]Attachment, 0, len(atts))
	for _, att := range atts {
		out = append(out, Attachment{
			Name:    att.Filename,
			Type:    att.ContentType,
			Content: EncodeBase64Lines(att.Content),
		})
	}
	return out
}

// EncodeBase64Lines encodes data as standard base64 split into lines of 60
// characters, each terminated by "\n". Empty input encodes to "".
func EncodeBase64Lines(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)

	var b strings.Builder
	b.Grow(len(encoded) + len(encoded)/base64LineLen + 1)
	for len(encoded) > 0 {
		n := min(base64LineLen, len(encoded))
		b.WriteString(encoded[:n])
		b.WriteByte('\n')
		encoded = encoded[n:]
	}
	return b.String()
}
