package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestopshq/pestops/internal/models"
)

func TestParseLoginID_Valid(t *testing.T) {
	cases := []struct {
		input    string
		roleHint string
		number   int
	}{
		{"admin12345", "admin", 12345},
		{"pco67890", "pco", 67890},
		{"ADMIN12345", "admin", 12345},
		{"  Admin 12345 ", "admin", 12345},
		{"p c o 6 7 8 9 0", "pco", 67890},
		{"pco1", "pco", 1},
		{"admin999999999", "admin", 999999999}, // nine digits, the cap
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			parsed, err := ParseLoginID(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.roleHint, parsed.RoleHint)
			assert.Equal(t, tc.number, parsed.LoginNumber)
		})
	}
}

func TestParseLoginID_WhitespaceAndCaseEquivalence(t *testing.T) {
	a, err := ParseLoginID("  Admin 12345 ")
	require.NoError(t, err)
	b, err := ParseLoginID("admin12345")
	require.NoError(t, err)

	assert.Equal(t, b, a)
	assert.Equal(t, "admin12345", a.Canonical)
}

func TestParseLoginID_Invalid(t *testing.T) {
	cases := []string{
		"",
		"admin",          // keyword without digits
		"12345",          // digits without keyword
		"manager12345",   // unknown role keyword
		"admin12345x",    // trailing garbage
		"adminpco12345",  // stacked keywords
		"admin-12345",    // separator not allowed
		"user@email.com",     // email-style identifier
		"admin1000000000",    // ten digits, one past the cap
		"admin1234567890123", // far past the cap
	}

	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			_, err := ParseLoginID(input)
			assert.ErrorIs(t, err, models.ErrInvalidLoginFormat)
		})
	}
}
