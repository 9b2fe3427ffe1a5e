package token

import (
	"sort"
	"strings"
)

// ScopeKey returns the normalized, order-independent cache key for a scope
// set. Two requests asking for the same permissions must land on the same
// cache entry no matter how their scope slices are ordered.
func ScopeKey(scopes []string) string {
	seen := make(map[string]struct{}, len(scopes))
	normalized := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		normalized = append(normalized, s)
	}
	sort.Strings(normalized)
	return strings.Join(normalized, " ")
}
