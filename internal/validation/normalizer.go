package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/vendaflow/lead-api/internal/domain"
)

// User-facing row messages are Portuguese, matching the product's
// import UI.
const (
	MsgEmailInvalid = "Email inválido ou ausente"
	MsgNameTooShort = "Nome deve ter pelo menos 2 caracteres"
	MsgPhoneInvalid = "Telefone inválido"
)

const (
	// DefaultCountryCode is prefixed onto 11-digit phone numbers that
	// do not already carry it.
	DefaultCountryCode = "55"

	maxCustomFieldValueLen = 1000
	minPhoneDigits         = 10
)

var (
	emailPattern          = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	customFieldKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	nonDigits             = regexp.MustCompile(`\D`)
)

// RawLead is one unvalidated record, as received from the API or a
// parsed import row.
type RawLead struct {
	Name         string
	Email        string
	Phone        string
	Company      string
	Source       string
	CustomFields map[string]any
}

// NormalizedLead is the canonical shape a raw record takes after
// validation succeeds.
type NormalizedLead struct {
	Name         string
	Email        string
	Phone        string
	Company      string
	Source       domain.LeadSource
	CustomFields map[string]any
}

// FieldError is a single field-level rejection.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Outcome carries either a normalized record or a non-empty error
// list, never both. Warnings are non-fatal (dropped custom fields,
// discarded optional phone).
type Outcome struct {
	Record   *NormalizedLead
	Errors   []FieldError
	Warnings []string
}

// Valid reports whether the outcome carries a usable record.
func (o Outcome) Valid() bool {
	return o.Record != nil && len(o.Errors) == 0
}

// Messages flattens the field errors for row-level reporting.
func (o Outcome) Messages() []string {
	msgs := make([]string, 0, len(o.Errors))
	for _, e := range o.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// Options controls path-specific normalization behavior.
type Options struct {
	// TitleCaseName word-capitalizes the name (import path); direct
	// API creation keeps the name as given.
	TitleCaseName bool
	// DefaultSource is used when the record carries no source.
	DefaultSource domain.LeadSource
	// PhoneRequired promotes an invalid phone from a warning to a
	// field error.
	PhoneRequired bool
}

// Normalizer validates and normalizes single records. Pure; malformed
// input is a first-class outcome, never a panic.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// ValidateAndNormalize applies the field rules in order and returns
// either a canonical record or the accumulated error list.
func (n *Normalizer) ValidateAndNormalize(raw RawLead, opts Options) Outcome {
	var out Outcome

	email := strings.ToLower(strings.TrimSpace(raw.Email))
	if email == "" || !emailPattern.MatchString(email) {
		out.Errors = append(out.Errors, FieldError{Field: "email", Message: MsgEmailInvalid})
	}

	name := strings.TrimSpace(raw.Name)
	if len([]rune(name)) < 2 {
		out.Errors = append(out.Errors, FieldError{Field: "name", Message: MsgNameTooShort})
	} else if opts.TitleCaseName {
		name = titleCase(name)
	}

	phone := ""
	if strings.TrimSpace(raw.Phone) != "" {
		normalized, ok := NormalizePhone(raw.Phone)
		if !ok {
			if opts.PhoneRequired {
				out.Errors = append(out.Errors, FieldError{Field: "phone", Message: MsgPhoneInvalid})
			} else {
				out.Warnings = append(out.Warnings, MsgPhoneInvalid)
			}
		} else {
			phone = normalized
		}
	}

	source := opts.DefaultSource
	if s := strings.TrimSpace(raw.Source); s != "" {
		candidate := domain.LeadSource(strings.ToLower(s))
		if !candidate.IsValid() {
			out.Errors = append(out.Errors, FieldError{
				Field:   "source",
				Message: fmt.Sprintf("Fonte desconhecida: %s", s),
			})
		} else {
			source = candidate
		}
	}

	fields, warnings := sanitizeCustomFields(raw.CustomFields)
	out.Warnings = append(out.Warnings, warnings...)

	if len(out.Errors) > 0 {
		return out
	}

	out.Record = &NormalizedLead{
		Name:         name,
		Email:        email,
		Phone:        phone,
		Company:      strings.TrimSpace(raw.Company),
		Source:       source,
		CustomFields: fields,
	}
	return out
}

// NormalizePhone strips non-digits, requires at least 10 digits and
// prefixes the default country code onto 11-digit numbers that do not
// already start with it.
func NormalizePhone(raw string) (string, bool) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if len(digits) < minPhoneDigits {
		return "", false
	}
	if len(digits) == 11 && !strings.HasPrefix(digits, DefaultCountryCode) {
		digits = DefaultCountryCode + digits
	}
	return digits, true
}

// sanitizeCustomFields drops entries with bad keys or oversized string
// values, returning a warning per dropped entry.
func sanitizeCustomFields(fields map[string]any) (map[string]any, []string) {
	if len(fields) == 0 {
		return nil, nil
	}

	clean := make(map[string]any, len(fields))
	var warnings []string
	for key, value := range fields {
		if !customFieldKeyPattern.MatchString(key) {
			warnings = append(warnings, fmt.Sprintf("campo personalizado descartado: chave inválida %q", key))
			continue
		}
		if s, ok := value.(string); ok && len(s) > maxCustomFieldValueLen {
			warnings = append(warnings, fmt.Sprintf("campo personalizado descartado: valor de %q excede %d caracteres", key, maxCustomFieldValueLen))
			continue
		}
		clean[key] = value
	}
	if len(clean) == 0 {
		clean = nil
	}
	return clean, warnings
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
