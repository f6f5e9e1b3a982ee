package pwd

import (
	"fmt"
	"regexp"
)

// Encoded password hashes look like "#<scheme>#<payload>". The scheme id is
// always carried so old hashes stay verifiable after new schemes ship.
var hashPartsRegex = regexp.MustCompile(`^#(?P<scheme>\w+)#(?P<hash>.+)$`)

// HashParts is what an encoded password hash splits into.
type HashParts struct {
	Scheme string
	Hash   string
}

// FormatError reports an encoded hash that does not match the expected
// "#<scheme>#<payload>" format.
type FormatError struct {
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("password hash %q is not in the #<scheme>#<hash> format", e.Input)
}

// UnknownSchemeError reports a scheme id with no registered handler.
type UnknownSchemeError struct {
	Scheme string
}

func (e *UnknownSchemeError) Error() string {
	return fmt.Sprintf("unknown password scheme %q", e.Scheme)
}

// ParseHashParts splits an encoded password hash into its scheme id and
// scheme-specific payload.
func ParseHashParts(encoded string) (HashParts, error) {
	m := hashPartsRegex.FindStringSubmatch(encoded)
	if m == nil {
		return HashParts{}, &FormatError{Input: encoded}
	}

	return HashParts{
		Scheme: m[hashPartsRegex.SubexpIndex("scheme")],
		Hash:   m[hashPartsRegex.SubexpIndex("hash")],
	}, nil
}
