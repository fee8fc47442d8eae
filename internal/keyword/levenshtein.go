package keyword

import "unicode/utf8"

// minFuzzyRunes is the shortest term length for which a one-edit typo still counts as the same word.
const minFuzzyRunes = 4

// EditDistance returns the optimal string alignment distance between a and b:
// insertions, deletions, substitutions, and adjacent transpositions each cost one edit.
func EditDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Three rolling rows: two back (for transpositions), previous, current.
	prev2 := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				curr[j] = min(curr[j], prev2[j-2]+1)
			}
		}
		prev2, prev, curr = prev, curr, prev2
	}
	return prev[len(rb)]
}

// Equivalent reports whether two normalized terms refer to the same word:
// equal, or both at least minFuzzyRunes long and one edit apart.
func Equivalent(a, b string) bool {
	if a == b {
		return true
	}
	if utf8.RuneCountInString(a) < minFuzzyRunes || utf8.RuneCountInString(b) < minFuzzyRunes {
		return false
	}
	return EditDistance(a, b) <= 1
}

// Overlap counts the terms of a that have an equivalent term in b.
// Each term of b is consumed at most once. union is |a| + |b| - matched.
// Terms are visited in sorted order so the result is deterministic.
func Overlap(a, b Keywords) (matched []string, union int) {
	used := make(map[string]struct{}, len(b))
	bSorted := b.Sorted()
	for _, term := range a.Sorted() {
		if b.Contains(term) {
			if _, taken := used[term]; !taken {
				used[term] = struct{}{}
				matched = append(matched, term)
				continue
			}
		}
		for _, other := range bSorted {
			if _, taken := used[other]; taken {
				continue
			}
			if Equivalent(term, other) {
				used[other] = struct{}{}
				matched = append(matched, term)
				break
			}
		}
	}
	return matched, a.Len() + b.Len() - len(matched)
}
