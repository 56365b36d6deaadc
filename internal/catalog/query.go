package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// ReleaseQuery filters ListReleases. CountryCode is required.
type ReleaseQuery struct {
	CountryCode string
	// Year restricts to release dates in that calendar year when non-zero.
	Year int
	// Types restricts release types; empty means DefaultReleaseTypes.
	Types []ReleaseType
	// MovieIDs restricts to internal movie IDs when non-empty.
	MovieIDs []int64
}

// EffectiveTypes returns the type filter with the default applied.
func (q ReleaseQuery) EffectiveTypes() []ReleaseType {
	if len(q.Types) == 0 {
		return append([]ReleaseType(nil), DefaultReleaseTypes...)
	}
	return q.Types
}

// Validate normalizes the country code and checks the remaining fields.
func (q *ReleaseQuery) Validate() error {
	code, err := NormalizeCountryCode(q.CountryCode)
	if err != nil {
		return err
	}
	q.CountryCode = code
	if q.Year < 0 {
		return fmt.Errorf("year must be positive, got %d", q.Year)
	}
	return nil
}

// NormalizeCountryCode upper-cases an ISO 3166-1 alpha-2 code.
func NormalizeCountryCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 2 || !isASCIILetter(code[0]) || !isASCIILetter(code[1]) {
		return "", fmt.Errorf("invalid country code %q", raw)
	}
	return code, nil
}

// ParseReleaseTypes parses a comma separated list such as "1,3".
// An empty string yields nil so the default filter applies.
func ParseReleaseTypes(raw string) ([]ReleaseType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]ReleaseType, 0, len(parts))
	seen := make(map[ReleaseType]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid release type %q", part)
		}
		t := ReleaseType(n)
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// TypeCodes converts release types to plain ints for SQL parameters.
func TypeCodes(types []ReleaseType) []int {
	out := make([]int, len(types))
	for i, t := range types {
		out[i] = int(t)
	}
	return out
}

func isASCIILetter(b byte) bool {
	return (b >= 'A' && b <= 'Z')
}
