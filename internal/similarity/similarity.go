package similarity

import "strings"

const (
	// WordWeight is the share of the word Jaccard component in Score.
	WordWeight = 0.6

	// TrigramWeight is the share of the character-trigram component in Score.
	TrigramWeight = 0.4

	// minWordLen is the shortest token (in runes) that takes part in Jaccard.
	minWordLen = 3
)

// Score returns a similarity in [0, 1] between a and b.
//
// Repeated trigrams can push the raw blend past 1 (see TrigramScore); the
// result is capped there. All match thresholds sit below 1, so the cap never
// changes which side of a threshold a pair lands on.
func Score(a, b string) float64 {
	s := WordWeight*Jaccard(a, b) + TrigramWeight*TrigramScore(a, b)
	if s > 1 {
		return 1
	}
	return s
}

// Jaccard returns |A∩B| / |A∪B| over the whitespace-separated words of a and b
// that are at least three runes long. Returns 0 when both sets are empty.
func Jaccard(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)

	union := len(wa)
	inter := 0
	for w := range wb {
		if _, ok := wa[w]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// TrigramScore returns overlap / (len(A) + len(B) - overlap) where overlap is
// the number of a's trigrams found in b's trigram list. Matches in b are not
// consumed, so a string with many repeats of a trigram that b contains once
// can score above 1.
func TrigramScore(a, b string) float64 {
	ta := Trigrams(a)
	tb := Trigrams(b)

	present := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		present[t] = struct{}{}
	}

	overlap := 0
	for _, t := range ta {
		if _, ok := present[t]; ok {
			overlap++
		}
	}

	union := len(ta) + len(tb) - overlap
	if union <= 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

// Trigrams returns every contiguous 3-rune substring of s in order.
// Strings shorter than three runes have none.
func Trigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}

// Best scores query against each phrasing and returns the index and score of
// the highest one. The first phrasing wins ties. Returns -1, 0 for an empty list.
func Best(query string, phrasings []string) (int, float64) {
	best, bestScore := -1, 0.0
	for i, p := range phrasings {
		s := Score(query, p)
		if best == -1 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < minWordLen {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}
