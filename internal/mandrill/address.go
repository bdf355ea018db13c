package mandrill

import (
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"
)

// addressFields lists the recipient headers in the order they are merged
// into the document's "to" array.
var addressFields = []string{"To", "Cc", "Bcc"}

// Address is a single parsed mailbox.
type Address struct {
	Email       string
	DisplayName string
}

// Recipient is one entry of the document's "to" array. Name is nil when the
// formatted address carried no display name.
type Recipient struct {
	Email string  `json:"email"`
	Name  *string `json:"name"`
	Type  string  `json:"type"`
}

// AddressError reports a formatted address that could not be parsed.
type AddressError struct {
	Field string
	Raw   string
	Err   error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid %s address %q: %v", e.Field, e.Raw, e.Err)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}

// ParseAddress parses one RFC 5322 mailbox: either a bare addr-spec
// ("jane@example.com") or a name-addr ("Jane Doe <jane@example.com>",
// "\"Doe, Jane\" <jane@example.com>"). RFC 2047 encoded words in the
// display name are decoded. A mailbox without a display name yields an
// empty DisplayName.
func ParseAddress(raw string) (Address, error) {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return Address{}, err
	}
	return Address{Email: addr.Address, DisplayName: addr.Name}, nil
}

// recipients parses one address field. It returns nil when the field is
// absent so callers can tell "absent" from "present but empty".
func recipients(m Mail, field string) ([]Recipient, error) {
	raw, ok := m.AddressField(field)
	if !ok {
		return nil, nil
	}

	typ := strings.ToLower(field)
	out := make([]Recipient, 0, len(raw))
	for _, r := range raw {
		addr, err := ParseAddress(r)
		if err != nil {
			return nil, &AddressError{Field: typ, Raw: r, Err: err}
		}
		out = append(out, Recipient{
			Email: addr.Email,
			Name:  optionalString(addr.DisplayName),
			Type:  typ,
		})
	}
	return out, nil
}

// allRecipients concatenates to, cc and bcc into one flat list, skipping
// absent fields. The result is never nil.
func allRecipients(m Mail) ([]Recipient, error) {
	out := make([]Recipient, 0)
	for _, field := range addressFields {
		rs, err := recipients(m, field)
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

// sender parses the first From entry. An absent or empty From field yields
// the zero Address and ok == false.
func sender(m Mail) (addr Address, ok bool, err error) {
	raw, present := m.AddressField("From")
	if !present || len(raw) == 0 {
		return Address{}, false, nil
	}
	addr, err = ParseAddress(raw[0])
	if err != nil {
		return Address{}, false, &AddressError{Field: "from", Raw: raw[0], Err: err}
	}
	return addr, true, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
