package utils

import "strings"

// MatchModule checks a module or feature identifier against a plan entry.
// Entries are plain identifiers or patterns over '.'-separated segments:
//   - '*' matches any sequence of characters within a segment; a trailing
//     ".*" matches the whole subtree ("finance.*" covers "finance.invoices"
//     and "finance.invoices.approve").
//   - A bare "*" entry matches everything.
func MatchModule(id, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		base := strings.TrimSuffix(pattern, ".*")
		return id == base || strings.HasPrefix(id, base+".")
	}
	return matchSegments(id, pattern)
}

// MatchAny reports whether any entry in the set matches the identifier.
func MatchAny(id string, patterns []string) bool {
	for _, p := range patterns {
		if MatchModule(id, p) {
			return true
		}
	}
	return false
}

func matchSegments(id, pattern string) bool {
	idSegs := strings.Split(id, ".")
	patSegs := strings.Split(pattern, ".")
	if len(idSegs) != len(patSegs) {
		return false
	}
	for i, ps := range patSegs {
		if !matchSegment(idSegs[i], ps) {
			return false
		}
	}
	return true
}

// matchSegment matches one segment against a pattern segment that may
// contain '*' wildcards.
func matchSegment(value, pattern string) bool {
	vIndex, pIndex := 0, 0
	vLen, pLen := len(value), len(pattern)
	starIdx, starV := -1, 0

	for vIndex < vLen {
		switch {
		case pIndex < pLen && pattern[pIndex] == '*':
			starIdx = pIndex
			starV = vIndex
			pIndex++
		case pIndex < pLen && pattern[pIndex] == value[vIndex]:
			pIndex++
			vIndex++
		case starIdx >= 0:
			starV++
			vIndex = starV
			pIndex = starIdx + 1
		default:
			return false
		}
	}
	for pIndex < pLen && pattern[pIndex] == '*' {
		pIndex++
	}
	return pIndex == pLen
}
