package mandrill

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MetadataMode selects how the "metadata" header is interpreted.
type MetadataMode string

const (
	// MetadataAuto tries strict JSON first and falls back to the legacy
	// arrow syntax.
	MetadataAuto MetadataMode = "auto"

	// MetadataStrict requires a JSON object literal.
	MetadataStrict MetadataMode = "strict"

	// MetadataLegacy accepts hash literals such as {"key"=>"value"} by
	// replacing every "=>" with ":" before decoding as JSON.
	//
	// Deprecated: a value that itself contains "=>" is corrupted by the
	// substitution. Send metadata as JSON instead.
	MetadataLegacy MetadataMode = "legacy"
)

// ParseMetadataMode validates a mode name. The empty string selects
// MetadataAuto.
func ParseMetadataMode(s string) (MetadataMode, error) {
	switch MetadataMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetadataAuto:
		return MetadataAuto, nil
	case MetadataStrict:
		return MetadataStrict, nil
	case MetadataLegacy:
		return MetadataLegacy, nil
	default:
		return "", fmt.Errorf("unknown metadata mode %q", s)
	}
}

// Metadata is a successfully parsed "metadata" header.
type Metadata struct {
	Values map[string]any

	// Legacy is set when the value only parsed after arrow substitution.
	Legacy bool
}

// MetadataParseError reports a "metadata" header that could not be parsed
// in the requested mode.
type MetadataParseError struct {
	Mode   MetadataMode
	Input  string
	Reason string
	Err    error
}

func (e *MetadataParseError) Error() string {
	s := fmt.Sprintf("metadata (%s mode): %s", e.Mode, e.Reason)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *MetadataParseError) Unwrap() error {
	return e.Err
}

// errNotObject is returned when the metadata decodes to something other
// than a JSON object.
var errNotObject = errors.New("value is not an object")

// ParseMetadata parses the value of a "metadata" header.
func ParseMetadata(raw string, mode MetadataMode) (Metadata, error) {
	switch mode {
	case MetadataStrict:
		values, err := decodeObject(raw)
		if err != nil {
			return Metadata{}, &MetadataParseError{Mode: mode, Input: raw, Reason: "invalid JSON object", Err: err}
		}
		return Metadata{Values: values}, nil

	case MetadataLegacy:
		values, err := decodeObject(arrowsToColons(raw))
		if err != nil {
			return Metadata{}, &MetadataParseError{Mode: mode, Input: raw, Reason: "invalid hash literal", Err: err}
		}
		return Metadata{Values: values, Legacy: true}, nil

	case MetadataAuto, "":
		if values, err := decodeObject(raw); err == nil {
			return Metadata{Values: values}, nil
		}
		values, err := decodeObject(arrowsToColons(raw))
		if err != nil {
			return Metadata{}, &MetadataParseError{Mode: MetadataAuto, Input: raw, Reason: "neither a JSON object nor a hash literal", Err: err}
		}
		return Metadata{Values: values, Legacy: true}, nil

	default:
		return Metadata{}, &MetadataParseError{Mode: mode, Input: raw, Reason: "unknown mode"}
	}
}

func arrowsToColons(s string) string {
	return strings.ReplaceAll(s, "=>", ":")
}

// decodeObject decodes exactly one JSON object. Numbers keep their literal
// form so large integers survive re-encoding.
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after object")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}
