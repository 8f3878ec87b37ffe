// Package similarity scores how alike two lists of words are. Scores come
// from a word-vector service over HTTP or from vectors loaded locally, and
// may be cached on disk.
package similarity

import (
	"context"
	"sort"
)

// Oracle scores the similarity of two token lists. ok is false when the
// oracle has no signal for the pair, e.g. because no word is known.
type Oracle interface {
	Similarity(ctx context.Context, newWords, oldWords []string) (score float64, ok bool, err error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, newWords, oldWords []string) (float64, bool, error)

// Similarity calls f.
func (f OracleFunc) Similarity(ctx context.Context, newWords, oldWords []string) (float64, bool, error) {
	return f(ctx, newWords, oldWords)
}

// WordFunc scores a single pair of words.
type WordFunc func(a, b string) (float64, bool)

// SentenceSimilarity pairs words greedily, best scoring pair first, using
// each word of either list at most once, and averages the chosen pairs.
// Pairs scoring exactly zero are ignored.
func SentenceSimilarity(newWords, oldWords []string, word WordFunc) (float64, bool) {
	type scored struct {
		a, b  string
		score float64
	}
	olds := unique(oldWords)
	var pairs []scored
	for _, a := range newWords {
		for _, b := range olds {
			if s, ok := word(a, b); ok && s != 0 {
				pairs = append(pairs, scored{a, b, s})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	restNew, restOld := toSet(newWords), toSet(oldWords)
	total, n := 0.0, 0
	for _, p := range pairs {
		if len(restNew) == 0 || len(restOld) == 0 {
			break
		}
		if restNew[p.a] && restOld[p.b] {
			total += p.score
			n++
			delete(restNew, p.a)
			delete(restOld, p.b)
		}
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}

func unique(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func toSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
