// Package ident provides identifier generation and name validation for the object store.
package ident

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// SuffixLength is the length of a physical table suffix.
const SuffixLength = 6

// suffixAlphabet is the character set for table suffixes (0-9, a-z).
const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var (
	// validNameRE is the allowed-character rule for namespaces, object ids,
	// revision ids, and tags. Empty strings match.
	validNameRE = regexp.MustCompile(`^[a-zA-Z0-9:+\-_/~#]*$`)

	// validSuffixRE constrains table suffixes before they are interpolated
	// into SQL identifiers.
	validSuffixRE = regexp.MustCompile(`^[a-z0-9]{6}$`)
)

// IsValidName reports whether val contains only the characters permitted in
// namespaces, object ids, and tags.
func IsValidName(val string) bool {
	return validNameRE.MatchString(val)
}

// IsValidSuffix reports whether val is a well-formed physical table suffix.
func IsValidSuffix(val string) bool {
	return validSuffixRE.MatchString(val)
}

// NewObjectID returns a new globally unique object identifier.
func NewObjectID() string {
	return uuid.New().String()
}

// NewRevisionID returns a new globally unique revision identifier.
func NewRevisionID() string {
	return uuid.New().String()
}

// NewSuffix returns a random lowercase alphanumeric table suffix. Uniqueness
// is not guaranteed; callers probe the mapping table and retry on collision.
func NewSuffix() (string, error) {
	max := big.NewInt(int64(len(suffixAlphabet)))
	buf := make([]byte, SuffixLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating suffix: %w", err)
		}
		buf[i] = suffixAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// ParseList parses a list-valued request parameter. It accepts either a
// JSON-array string (single quotes are normalized to double quotes first) or
// a comma-separated string whose elements are trimmed, with empty elements
// dropped. Every element must pass IsValidName. An empty input yields nil.
// Error text is phrased for API responses.
func ParseList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}

	var items []string
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		normalized := strings.ReplaceAll(raw, "'", `"`)
		if err := json.Unmarshal([]byte(normalized), &items); err != nil {
			return nil, fmt.Errorf("Unable to parse JSON string: %s", raw)
		}
	} else {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
	}

	for _, s := range items {
		if !IsValidName(s) {
			return nil, fmt.Errorf("Invalid string found: %s", s)
		}
	}
	return items, nil
}
