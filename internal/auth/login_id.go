package auth

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pestopshq/pestops/internal/models"
)

// Login identifiers are a role keyword immediately followed by the account's
// login number, e.g. "admin12345" or "pco67890". The pattern is deliberately
// strict about the two keywords so future role additions cannot be ambiguous.
// The digit run is capped at nine on purpose: the largest issued login number
// fits comfortably, the parsed value can never overflow, and anything longer
// is treated as a malformed identifier rather than a candidate account.
var loginIDPattern = regexp.MustCompile(`^(admin|pco)([0-9]{1,9})$`)

// ParsedLoginID is the result of normalizing a raw login identifier.
type ParsedLoginID struct {
	RoleHint    string // "admin" or "pco"
	LoginNumber int
	Canonical   string // normalized form, e.g. "admin12345"
}

// ParseLoginID strips all whitespace, lower-cases the identifier, and
// matches it against the keyword-plus-digits pattern. Mixed case and
// embedded whitespace are accepted as a usability accommodation for the
// numeric-id login scheme ("  Admin 12345 " parses as "admin12345").
//
// On non-match it returns models.ErrInvalidLoginFormat; callers must still
// record the attempt so malformed-login probing is rate-limited too.
func ParseLoginID(raw string) (*ParsedLoginID, error) {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, raw)

	m := loginIDPattern.FindStringSubmatch(normalized)
	if m == nil {
		return nil, models.ErrInvalidLoginFormat
	}

	number, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, models.ErrInvalidLoginFormat
	}

	return &ParsedLoginID{
		RoleHint:    m[1],
		LoginNumber: number,
		Canonical:   normalized,
	}, nil
}
