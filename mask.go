package strata

import (
	"strings"
	"unicode"
)

// MaskType represents a known data format with masking rules.
type MaskType string

const (
	MaskSSN   MaskType = "ssn"   // 123-45-6789 -> ***-**-6789
	MaskEmail MaskType = "email" // alice@example.com -> a***@example.com
	MaskPhone MaskType = "phone" // (555) 123-4567 -> ***-***-4567
	MaskCard  MaskType = "card"  // 4111111111111111 -> ************1111
	MaskIP    MaskType = "ip"    // 192.168.1.100 -> 192.168.xxx.xxx
	MaskName  MaskType = "name"  // John Smith -> J*** S****
)

// Masker applies content-aware masking.
type Masker interface {
	Mask(value string) string
}

// MaskerFunc adapts a function to Masker.
type MaskerFunc func(string) string

// Mask implements Masker.
func (f MaskerFunc) Mask(value string) string { return f(value) }

var builtinMaskers = map[MaskType]Masker{
	MaskSSN:   MaskerFunc(maskSSN),
	MaskEmail: MaskerFunc(maskEmail),
	MaskPhone: MaskerFunc(maskPhone),
	MaskCard:  MaskerFunc(maskCard),
	MaskIP:    MaskerFunc(maskIP),
	MaskName:  MaskerFunc(maskName),
}

// BuiltinMasker returns the masker for a known mask type.
func BuiltinMasker(mt MaskType) (Masker, bool) {
	m, ok := builtinMaskers[mt]
	return m, ok
}

func maskSSN(v string) string {
	last, ok := lastDigits(v, 4)
	if !ok {
		return stars(v)
	}
	return "***-**-" + last
}

func maskEmail(v string) string {
	at := strings.LastIndex(v, "@")
	if at < 1 {
		return stars(v)
	}
	return v[:1] + "***" + v[at:]
}

func maskPhone(v string) string {
	last, ok := lastDigits(v, 4)
	if !ok {
		return stars(v)
	}
	if countDigits(v) >= 10 {
		return "***-***-" + last
	}
	return "***-" + last
}

func maskCard(v string) string {
	last, ok := lastDigits(v, 4)
	if !ok {
		return stars(v)
	}
	return strings.Repeat("*", countDigits(v)-4) + last
}

func maskIP(v string) string {
	if parts := strings.Split(v, "."); len(parts) == 4 {
		return parts[0] + "." + parts[1] + ".xxx.xxx"
	}
	if parts := strings.Split(v, ":"); len(parts) > 2 {
		return strings.Join(parts[:2], ":") + ":" + strings.Repeat("xxxx:", len(parts)-3) + "xxxx"
	}
	return stars(v)
}

func maskName(v string) string {
	words := strings.Fields(v)
	for i, w := range words {
		r := []rune(w)
		words[i] = string(r[0]) + strings.Repeat("*", len(r)-1)
	}
	return strings.Join(words, " ")
}

func stars(v string) string {
	return strings.Repeat("*", len([]rune(v)))
}

func countDigits(v string) int {
	n := 0
	for _, r := range v {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// lastDigits returns the last n digits of v, or false if v has fewer.
func lastDigits(v string, n int) (string, bool) {
	var digits []rune
	for _, r := range v {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) < n {
		return "", false
	}
	return string(digits[len(digits)-n:]), true
}

// Mask is a lifecycle observer that masks a string field in plain output.
// The stored value is untouched.
type Mask struct {
	id     string
	masker Masker
}

// NewMask creates a Mask observer for a built-in mask type.
func NewMask(mt MaskType) (*Mask, error) {
	m, ok := BuiltinMasker(mt)
	if !ok {
		return nil, newConfigError(ErrInvalidTag, "", "", string(mt))
	}
	return &Mask{id: "mask", masker: m}, nil
}

// NewMaskWith creates a Mask observer with a custom masker.
func NewMaskWith(id string, m Masker) *Mask {
	return &Mask{id: id, masker: m}
}

// ID implements Transformation.
func (m *Mask) ID() string { return m.id }

// Events implements EventHandler.
func (m *Mask) Events() []Event { return []Event{EventToPlain} }

// HandleEvent rewrites the field in the plain output map passed as args[0].
func (m *Mask) HandleEvent(_ *Cell, _ Event, _ *Entity, field string, args ...any) error {
	out := plainOutput(args)
	if s, ok := out[field].(string); ok {
		out[field] = m.masker.Mask(s)
	}
	return nil
}

// Redact is a lifecycle observer that replaces a field in plain output
// with a fixed string.
type Redact struct {
	id          string
	replacement string
}

// NewRedact creates a Redact observer.
func NewRedact(replacement string) *Redact {
	return &Redact{id: "redact", replacement: replacement}
}

// ID implements Transformation.
func (r *Redact) ID() string { return r.id }

// Events implements EventHandler.
func (r *Redact) Events() []Event { return []Event{EventToPlain} }

// HandleEvent replaces the field in the plain output map passed as args[0].
func (r *Redact) HandleEvent(_ *Cell, _ Event, _ *Entity, field string, args ...any) error {
	out := plainOutput(args)
	if _, ok := out[field]; ok {
		out[field] = r.replacement
	}
	return nil
}

func plainOutput(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out, _ := args[0].(map[string]any)
	return out
}
