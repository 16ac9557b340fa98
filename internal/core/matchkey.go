package core

// matchkey.go derives canonical comparison keys from raw article codes.
// This is the single definition of the article-key logic; both the import
// side and the reconciliation side go through it so the two can never
// diverge.

import "strings"

// MatchKeys returns the canonical comparison keys for a raw article code.
// Empty input yields an empty slice. The lowercase-folded raw code is
// always included. When prefix is non-empty, useArticleKey is set, and the
// code starts with the prefix (case-insensitive), the remainder after the
// prefix - trimmed and lowercased - is added as a second key if non-empty.
// The result is de-duplicated, insertion order preserved.
func MatchKeys(code, prefix string, useArticleKey bool) []string {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}

	keys := []string{strings.ToLower(code)}

	if useArticleKey && prefix != "" && len(code) >= len(prefix) &&
		strings.EqualFold(code[:len(prefix)], prefix) {
		stripped := strings.ToLower(strings.TrimSpace(code[len(prefix):]))
		if stripped != "" && stripped != keys[0] {
			keys = append(keys, stripped)
		}
	}

	return keys
}

// MatchIndex reconciles article codes across systems. It indexes a
// reference set of codes by their match keys so codes from a differently
// prefixed source can be looked up by any of their own keys.
type MatchIndex struct {
	prefix        string
	useArticleKey bool
	byKey         map[string]string
}

// NewMatchIndex creates an index deriving keys with the given profile
// parameters (the reference side's prefix rule).
func NewMatchIndex(prefix string, useArticleKey bool) *MatchIndex {
	return &MatchIndex{
		prefix:        prefix,
		useArticleKey: useArticleKey,
		byKey:         make(map[string]string),
	}
}

// Add indexes one reference code under all of its match keys.
// The first code to claim a key wins.
func (m *MatchIndex) Add(code string) {
	for _, k := range MatchKeys(code, m.prefix, m.useArticleKey) {
		if _, taken := m.byKey[k]; !taken {
			m.byKey[k] = code
		}
	}
}

// Find looks up a code from another system, deriving that code's keys with
// the caller's profile parameters. Returns the matching reference code.
func (m *MatchIndex) Find(code, prefix string, useArticleKey bool) (string, bool) {
	for _, k := range MatchKeys(code, prefix, useArticleKey) {
		if ref, ok := m.byKey[k]; ok {
			return ref, true
		}
	}
	return "", false
}

// Len returns the number of distinct keys indexed.
func (m *MatchIndex) Len() int { return len(m.byKey) }
