package record

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// TimeLayout is the layout used to persist and export timestamps.
const TimeLayout = time.RFC3339

// MaxTextLength is the longest name, key or value in characters. It is
// the spreadsheet cell limit, so every stored text exports unchanged.
const MaxTextLength = 32767

// reservedKeys are the fixed export columns. An extra field with one of
// these keys would collide with them in the spreadsheet header.
var reservedKeys = map[string]struct{}{
	"id":         {},
	"name":       {},
	"created_at": {},
}

// Field is one user-named attribute of a client.
type Field struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Fields is an ordered list of extra fields. Order is insertion order.
type Fields []Field

// Get returns the value stored under key.
func (fs Fields) Get(key string) (string, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (fs Fields) Has(key string) bool {
	_, ok := fs.Get(key)
	return ok
}

// Keys returns the keys in order.
func (fs Fields) Keys() []string {
	keys := make([]string, len(fs))
	for i, f := range fs {
		keys[i] = f.Key
	}
	return keys
}

// Clone returns a deep copy. A nil receiver yields an empty, non-nil slice.
func (fs Fields) Clone() Fields {
	out := make(Fields, len(fs))
	copy(out, fs)
	return out
}

// Client is one customer record.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Fields    Fields    `json:"fields"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy that shares no memory with c.
func (c Client) Clone() Client {
	c.Fields = c.Fields.Clone()
	return c
}

// Update describes an atomic change to an existing client.
// Nil Name leaves the name untouched. Set only changes keys that already
// exist; Remove drops keys. Positions of the remaining fields are kept.
type Update struct {
	Name   *string
	Set    Fields
	Remove []string
}

// IsZero reports whether the update changes nothing.
func (u Update) IsZero() bool {
	return u.Name == nil && len(u.Set) == 0 && len(u.Remove) == 0
}

// NormalizeName trims and NFC-normalizes a client name.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// NormalizeKey trims and NFC-normalizes a field key.
func NormalizeKey(key string) string {
	return norm.NFC.String(strings.TrimSpace(key))
}

// ValidateName returns the normalized name or a validation error.
func ValidateName(op, name string) (string, error) {
	if !utf8.ValidString(name) {
		return "", NewValidationError(op, "name is not valid UTF-8")
	}
	n := NormalizeName(name)
	if n == "" {
		return "", NewValidationError(op, "name must not be empty")
	}
	if err := ValidateText(op, "name", n); err != nil {
		return "", err
	}
	return n, nil
}

// ValidateKey returns the normalized key or a validation error.
func ValidateKey(op, key string) (string, error) {
	if !utf8.ValidString(key) {
		return "", NewValidationError(op, "field key is not valid UTF-8")
	}
	k := NormalizeKey(key)
	if k == "" {
		return "", NewValidationError(op, "field key must not be empty")
	}
	if _, ok := reservedKeys[strings.ToLower(k)]; ok {
		return "", NewValidationError(op, "field key "+quote(k)+" is reserved")
	}
	if err := ValidateText(op, "field key", k); err != nil {
		return "", err
	}
	return k, nil
}

// ValidateValue rejects a field value that cannot be exported unchanged.
// Values are stored as given, without trimming.
func ValidateValue(op, key, value string) error {
	return ValidateText(op, "value of "+quote(key), value)
}

// ValidateText rejects invalid UTF-8, text longer than MaxTextLength and
// characters XML 1.0 cannot carry. what names the text in the message.
func ValidateText(op, what, s string) error {
	if !utf8.ValidString(s) {
		return NewValidationError(op, what+" is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(s); n > MaxTextLength {
		return NewValidationError(op, fmt.Sprintf("%s has %d characters, at most %d allowed", what, n, MaxTextLength))
	}
	for _, r := range s {
		if !xmlChar(r) {
			return NewValidationError(op, fmt.Sprintf("%s contains control character %U", what, r))
		}
	}
	return nil
}

// xmlChar reports whether r is in the XML 1.0 Char production.
func xmlChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= utf8.MaxRune:
		return true
	}
	return false
}

// ValidateFields normalizes keys and rejects empty, reserved or duplicate
// keys and values ValidateValue refuses. The returned slice is a fresh
// copy in the input order.
func ValidateFields(op string, fields []Field) (Fields, error) {
	out := make(Fields, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		k, err := ValidateKey(op, f.Key)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[k]; dup {
			return nil, NewValidationError(op, "duplicate field key "+quote(k))
		}
		if err := ValidateValue(op, k, f.Value); err != nil {
			return nil, err
		}
		seen[k] = struct{}{}
		out = append(out, Field{Key: k, Value: f.Value})
	}
	return out, nil
}

func quote(s string) string {
	return `"` + s + `"`
}
