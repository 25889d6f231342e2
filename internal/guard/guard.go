// Package guard decides whether a caller may read an entry, based on the
// entry's address and agent allow-lists.
package guard

import (
	"strings"

	"github.com/atinyakov/easyvault/internal/models"
)

// IsAllowed reports whether the caller passes both of the entry's allow-lists.
// An empty list allows everything.
func IsAllowed(entry models.Entry, address, agent string) bool {
	return matchAny(entry.AllowedAddressPatterns, address) &&
		matchAny(entry.AllowedAgentPatterns, agent)
}

func matchAny(patterns []string, input string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if Match(p, input) {
			return true
		}
	}
	return false
}

// Match reports whether input matches pattern. A pattern without '*' must
// equal input exactly. Otherwise '*' matches any run of characters, including
// an empty one, and the pattern is anchored at both ends. No other
// metacharacters exist.
func Match(pattern, input string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == input
	}

	parts := strings.Split(pattern, "*")
	head, tail := parts[0], parts[len(parts)-1]
	if !strings.HasPrefix(input, head) {
		return false
	}
	rest := input[len(head):]

	for _, mid := range parts[1 : len(parts)-1] {
		i := strings.Index(rest, mid)
		if i < 0 {
			return false
		}
		rest = rest[i+len(mid):]
	}
	return strings.HasSuffix(rest, tail)
}
