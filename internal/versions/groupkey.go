package versions

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"assetflow/internal/services"
)

const maxGroupKeyLength = 200

// CanonicalGroupKey normalizes a caller-supplied asset group key so that
// visually identical keys map to one group. Keys are NFC-normalized,
// case-folded, trimmed, and internal whitespace runs collapse to one space.
func CanonicalGroupKey(raw string) (string, error) {
	key := norm.NFC.String(strings.TrimSpace(raw))
	// Casers carry state, so each call gets its own.
	key = cases.Fold().String(key)
	key = strings.Join(strings.FieldsFunc(key, unicode.IsSpace), " ")
	if key == "" {
		return "", services.Wrap(services.ErrValidation, "versions", "group key", "asset group key is required", nil)
	}
	if len(key) > maxGroupKeyLength {
		return "", services.Wrap(services.ErrValidation, "versions", "group key", "asset group key is too long", nil)
	}
	for _, r := range key {
		if r == '/' || unicode.IsControl(r) {
			return "", services.Wrap(services.ErrValidation, "versions", "group key",
				"asset group key must not contain '/' or control characters", nil)
		}
	}
	return key, nil
}
