package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendaflow/lead-api/internal/domain"
)

func defaultOpts() Options {
	return Options{DefaultSource: domain.LeadSourceWebsite}
}

func TestValidateAndNormalizeHappyPath(t *testing.T) {
	n := NewNormalizer()

	out := n.ValidateAndNormalize(RawLead{
		Name:    "Ana Silva",
		Email:   "  ANA@EXAMPLE.com ",
		Phone:   "(11) 98888-7777",
		Company: " Acme ",
		Source:  "referral",
	}, defaultOpts())

	require.True(t, out.Valid())
	assert.Equal(t, "ana@example.com", out.Record.Email)
	assert.Equal(t, "Ana Silva", out.Record.Name)
	assert.Equal(t, "5511988887777", out.Record.Phone)
	assert.Equal(t, "Acme", out.Record.Company)
	assert.Equal(t, domain.LeadSourceReferral, out.Record.Source)
}

func TestValidateAndNormalizeRejectsBadRow(t *testing.T) {
	n := NewNormalizer()

	out := n.ValidateAndNormalize(RawLead{Name: "a", Email: "bad-email"}, defaultOpts())

	require.False(t, out.Valid())
	assert.Nil(t, out.Record)
	assert.ElementsMatch(t, []string{MsgNameTooShort, MsgEmailInvalid}, out.Messages())
}

func TestValidateAndNormalizeEmailRequired(t *testing.T) {
	n := NewNormalizer()

	for _, email := range []string{"", "   ", "no-at-sign", "a@b", "two@@example.com"} {
		out := n.ValidateAndNormalize(RawLead{Name: "Valid Name", Email: email}, defaultOpts())
		assert.False(t, out.Valid(), "email %q should be rejected", email)
		assert.Contains(t, out.Messages(), MsgEmailInvalid)
	}
}

func TestValidateAndNormalizePhoneRules(t *testing.T) {
	n := NewNormalizer()

	// 10 digits: accepted as-is, no country-code inference
	out := n.ValidateAndNormalize(RawLead{Name: "Jo Doe", Email: "jo@example.com", Phone: "1188887777"}, defaultOpts())
	require.True(t, out.Valid())
	assert.Equal(t, "1188887777", out.Record.Phone)

	// 11 digits already starting with the country code: untouched
	out = n.ValidateAndNormalize(RawLead{Name: "Jo Doe", Email: "jo@example.com", Phone: "55988887777"}, defaultOpts())
	require.True(t, out.Valid())
	assert.Equal(t, "55988887777", out.Record.Phone)

	// 13 digits: left alone
	out = n.ValidateAndNormalize(RawLead{Name: "Jo Doe", Email: "jo@example.com", Phone: "+55 11 98888-7777"}, defaultOpts())
	require.True(t, out.Valid())
	assert.Equal(t, "5511988887777", out.Record.Phone)

	// too short and optional: dropped with a warning, row still valid
	out = n.ValidateAndNormalize(RawLead{Name: "Jo Doe", Email: "jo@example.com", Phone: "12345"}, defaultOpts())
	require.True(t, out.Valid())
	assert.Empty(t, out.Record.Phone)
	assert.Contains(t, out.Warnings, MsgPhoneInvalid)

	// too short and mandatory: hard error
	opts := defaultOpts()
	opts.PhoneRequired = true
	out = n.ValidateAndNormalize(RawLead{Name: "Jo Doe", Email: "jo@example.com", Phone: "12345"}, opts)
	assert.False(t, out.Valid())
	assert.Contains(t, out.Messages(), MsgPhoneInvalid)
}

func TestValidateAndNormalizeSource(t *testing.T) {
	n := NewNormalizer()

	// absent source falls back to the caller default
	opts := Options{DefaultSource: domain.LeadSourceImport}
	out := n.ValidateAndNormalize(RawLead{Name: "Jo Doe", Email: "jo@example.com"}, opts)
	require.True(t, out.Valid())
	assert.Equal(t, domain.LeadSourceImport, out.Record.Source)

	// unknown source is a hard error
	out = n.ValidateAndNormalize(RawLead{Name: "Jo Doe", Email: "jo@example.com", Source: "telepathy"}, opts)
	require.False(t, out.Valid())
	assert.Contains(t, out.Messages(), "Fonte desconhecida: telepathy")
}

func TestValidateAndNormalizeTitleCase(t *testing.T) {
	n := NewNormalizer()

	opts := defaultOpts()
	opts.TitleCaseName = true
	out := n.ValidateAndNormalize(RawLead{Name: "ana maria SILVA", Email: "ana@example.com"}, opts)
	require.True(t, out.Valid())
	assert.Equal(t, "Ana Maria Silva", out.Record.Name)

	// the direct path keeps the name as given
	out = n.ValidateAndNormalize(RawLead{Name: "ana maria SILVA", Email: "ana@example.com"}, defaultOpts())
	require.True(t, out.Valid())
	assert.Equal(t, "ana maria SILVA", out.Record.Name)
}

func TestValidateAndNormalizeCustomFields(t *testing.T) {
	n := NewNormalizer()

	out := n.ValidateAndNormalize(RawLead{
		Name:  "Jo Doe",
		Email: "jo@example.com",
		CustomFields: map[string]any{
			"budget":     float64(50000),
			"9invalid":   "x",
			"bad-key":    "y",
			"long_value": strings.Repeat("a", 1001),
		},
	}, defaultOpts())

	require.True(t, out.Valid())
	assert.Equal(t, map[string]any{"budget": float64(50000)}, out.Record.CustomFields)
	assert.Len(t, out.Warnings, 3)
}
