package transport

import "strings"

// MatchPattern reports whether channel matches a dot-delimited pattern
// where "*" matches exactly one token, mirroring NATS subject-wildcard
// semantics. This is shared by the memory adapter (which has no backend
// pattern matcher of its own) and by tests asserting adapter-neutral
// routing behavior.
func MatchPattern(pattern, channel string) bool {
	pTokens := strings.Split(pattern, ".")
	cTokens := strings.Split(channel, ".")
	if len(pTokens) != len(cTokens) {
		return false
	}
	for i, pt := range pTokens {
		if pt == "*" {
			continue
		}
		if pt != cTokens[i] {
			return false
		}
	}
	return true
}
