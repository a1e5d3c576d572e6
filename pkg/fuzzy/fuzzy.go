// Package fuzzy ranks company names against a typed query, tolerating typos
// and the legal-form suffixes that make seller names long.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"
)

// suffixes are dropped before comparing, longest first.
var suffixes = []string{
	"股份有限公司", "有限责任公司", "有限公司", "分公司",
	"co., ltd.", "co.,ltd.", "co. ltd", "co ltd", "ltd.", "ltd", "inc.", "inc",
}

// LevenshteinDistance calculates the edit distance between two strings in runes
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m, n := len(r1), len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}
	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[n]
}

// threshold is the typo tolerance for a query of n runes.
func threshold(n int) int {
	switch {
	case n <= 2:
		return 0
	case n <= 4:
		return 1
	case n >= 8:
		return 3
	}
	return 2
}

// Score rates how well name matches query. Zero means no match.
func Score(query, name string) float64 {
	q := normalize(query)
	full := normalize(name)
	if q == "" || full == "" {
		return 0
	}
	base := stripSuffix(full)

	switch {
	case base == q || full == q:
		return 200
	case strings.HasPrefix(base, q):
		return 150
	case strings.Contains(full, q):
		return 100
	}

	limit := threshold(len([]rune(q)))
	if limit == 0 {
		return 0
	}
	best := -1
	for _, candidate := range []string{base, prefixOf(base, len([]rune(q)))} {
		if d := LevenshteinDistance(q, candidate); best < 0 || d < best {
			best = d
		}
	}
	if best > limit {
		return 0
	}
	return 60 - float64(best)*15
}

// Rank returns up to limit names that match query, best first.
func Rank(query string, names []string, limit int) []string {
	type scored struct {
		name  string
		score float64
	}
	var matches []scored
	for _, name := range names {
		if s := Score(query, name); s > 0 {
			matches = append(matches, scored{name, s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].name < matches[j].name
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}

// normalize lowercases, drops spaces and maps full-width ASCII to half-width
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= '！' && r <= '～' {
			r -= 0xFEE0
		}
		if unicode.IsSpace(r) || r == '（' || r == '）' || r == '(' || r == ')' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func stripSuffix(s string) string {
	for _, suffix := range suffixes {
		key := strings.ReplaceAll(suffix, " ", "")
		if strings.HasSuffix(s, key) && len(s) > len(key) {
			return strings.TrimSuffix(s, key)
		}
	}
	return s
}

func prefixOf(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
