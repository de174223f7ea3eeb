package validate

import "strings"

// synonymGroups is the closed, authoritative set of interchangeable
// parameter key names used for rename-autocorrection. Extending it
// requires an explicit code change here, not runtime configuration.
var synonymGroups = [][]string{
	{"path", "file", "filename", "filepath", "location", "destination"},
	{"url", "link", "address", "uri", "href"},
	{"content", "text", "data", "body", "value", "message"},
	{"selector", "element", "target", "locator", "query"},
	{"command", "cmd", "script", "exec", "run"},
}

// synonymOf reports whether a and b are registered synonyms of each
// other, or equal once case-folded, or equal once camelCase/snake_case is
// normalized.
func synonymOf(a, b string) bool {
	if a == b {
		return true
	}
	if normalizeCase(a) == normalizeCase(b) {
		return true
	}
	for _, group := range synonymGroups {
		inA, inB := false, false
		for _, name := range group {
			if name == a {
				inA = true
			}
			if name == b {
				inB = true
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}

// normalizeCase converts camelCase to snake_case and lowercases, so
// "filePath" and "file_path" compare equal.
func normalizeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// similarity scores how well candidate matches target per the weighted
// combination used throughout the pipeline for suggestions and
// autocorrection: exact (1.0), case-insensitive substring (0.7-0.8),
// normalized Levenshtein similarity (x0.5), shared prefix (x0.3). The
// best-scoring basis wins; a result is only offered when score > 0.5.
func similarity(target, candidate string) float64 {
	if target == candidate {
		return 1.0
	}

	lt, lc := strings.ToLower(target), strings.ToLower(candidate)
	if lt == lc {
		return 0.95
	}

	best := 0.0

	if strings.Contains(lc, lt) || strings.Contains(lt, lc) {
		shorter, longer := lt, lc
		if len(longer) < len(shorter) {
			shorter, longer = longer, shorter
		}
		ratio := float64(len(shorter)) / float64(len(longer))
		score := 0.7 + 0.1*ratio
		if score > best {
			best = score
		}
	}

	levScore := levenshteinSimilarity(lt, lc) * 0.5
	if levScore > best {
		best = levScore
	}

	prefixLen := sharedPrefixLen(lt, lc)
	if prefixLen > 0 {
		maxLen := len(lt)
		if len(lc) > maxLen {
			maxLen = len(lc)
		}
		prefixScore := (float64(prefixLen) / float64(maxLen)) * 0.3
		if prefixScore > best {
			best = prefixScore
		}
	}

	return best
}

// bestMatch finds the highest-scoring candidate for target, returning ok
// only when its score exceeds the 0.5 acceptance threshold.
func bestMatch(target string, candidates []string) (match string, score float64, ok bool) {
	for _, c := range candidates {
		s := similarity(target, c)
		if s > score {
			score = s
			match = c
		}
	}
	return match, score, score > 0.5
}

func sharedPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// levenshteinSimilarity returns 1 - (edit_distance / max_len), a
// normalized [0,1] similarity derived from Levenshtein edit distance.
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshteinDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	m, n := len(ra), len(rb)

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			curr[j] = best
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
