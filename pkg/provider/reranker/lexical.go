package reranker

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Tokenizer splits text into lowercase terms for BM25 scoring.
type Tokenizer func(text string) []string

// DefaultTokenizer lowercases text and splits on runs of non-letter,
// non-digit characters.
func DefaultTokenizer(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Lexical is a BM25 reranker. Query terms that have no exact match in a
// candidate fall back to a fuzzy match against that candidate's terms —
// Jaro-Winkler similarity for near-misspellings and Double Metaphone for
// phonetic equivalents — so a term like "grimjaw" still scores against a
// candidate containing "grimjaws" or "grimjoe".
type Lexical struct {
	// K1 controls term-frequency saturation. Default: 1.2.
	K1 float64

	// B controls document-length normalization (0 = none, 1 = full). Default: 0.75.
	B float64

	// Epsilon floors the IDF term for very common query terms so it never
	// goes negative. Default: 0.25.
	Epsilon float64

	// Tokenizer splits text into terms. Default: [DefaultTokenizer].
	Tokenizer Tokenizer

	// FuzzyThreshold is the minimum Jaro-Winkler similarity (0-1) at which a
	// non-exact term match counts toward a candidate's term frequency.
	// Default: 0.9. Set to a value > 1 to disable fuzzy matching entirely.
	FuzzyThreshold float64
}

// NewLexical returns a [Lexical] reranker with default BM25 parameters
// (k1=1.2, b=0.75, epsilon=0.25, Jaro-Winkler fuzzy threshold=0.9).
func NewLexical() *Lexical {
	return &Lexical{K1: 1.2, B: 0.75, Epsilon: 0.25, Tokenizer: DefaultTokenizer, FuzzyThreshold: 0.9}
}

func (l *Lexical) tokenizer() Tokenizer {
	if l.Tokenizer != nil {
		return l.Tokenizer
	}
	return DefaultTokenizer
}

// Score implements Reranker using BM25 computed over the supplied candidate
// set (document frequency and average length are derived from candidates,
// not a persistent corpus index).
func (l *Lexical) Score(_ context.Context, query string, candidates []string) ([]float64, error) {
	tokenize := l.tokenizer()
	queryTerms := tokenize(query)

	docTerms := make([][]string, len(candidates))
	docFreq := make(map[string]int)
	totalLen := 0
	for i, c := range candidates {
		terms := tokenize(c)
		docTerms[i] = terms
		totalLen += len(terms)
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				docFreq[t]++
			}
		}
	}

	n := len(candidates)
	var avgLen float64
	if n > 0 {
		avgLen = float64(totalLen) / float64(n)
	}

	k1, b := l.K1, l.B
	if k1 == 0 {
		k1 = 1.2
	}
	epsilon := l.Epsilon
	if epsilon == 0 {
		epsilon = 0.25
	}
	avgIDF := averageIDF(docFreq, n)

	scores := make([]float64, n)
	for i, terms := range docTerms {
		termFreq := make(map[string]int, len(terms))
		for _, t := range terms {
			termFreq[t]++
		}
		dl := float64(len(terms))
		var score float64
		for _, qt := range queryTerms {
			tf := l.matchFrequency(qt, termFreq, terms)
			if tf == 0 {
				continue
			}
			idf := bm25IDF(n, docFreq[qt])
			if idf < epsilon*avgIDF {
				idf = epsilon * avgIDF
			}
			denom := tf + k1*(1-b+b*safeDiv(dl, avgLen))
			score += idf * (tf * (k1 + 1)) / denom
		}
		scores[i] = score
	}
	return scores, nil
}

// Rerank implements Reranker.
func (l *Lexical) Rerank(ctx context.Context, query string, candidates []string) ([]int, error) {
	scores, err := l.Score(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	return rerankFromScores(scores), nil
}

// matchFrequency returns qt's term frequency in terms, falling back to a
// fuzzy-weighted count when qt has no exact occurrence.
func (l *Lexical) matchFrequency(qt string, termFreq map[string]int, terms []string) float64 {
	if tf, ok := termFreq[qt]; ok {
		return float64(tf)
	}
	threshold := l.FuzzyThreshold
	if threshold == 0 {
		threshold = 0.9
	}
	if threshold > 1 {
		return 0
	}

	qtMeta1, qtMeta2 := matchr.DoubleMetaphone(qt)
	var best float64
	for term, tf := range termFreq {
		sim := matchr.JaroWinkler(qt, term, true)
		if sim < threshold {
			m1, m2 := matchr.DoubleMetaphone(term)
			if qtMeta1 != "" && (qtMeta1 == m1 || qtMeta1 == m2 || qtMeta2 == m1) {
				sim = threshold
			}
		}
		if sim >= threshold {
			weighted := sim * float64(tf)
			if weighted > best {
				best = weighted
			}
		}
	}
	_ = terms
	return best
}

// bm25IDF is the BM25+ inverse document frequency term, smoothed to never
// go negative for very common terms.
func bm25IDF(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

func averageIDF(docFreq map[string]int, n int) float64 {
	if len(docFreq) == 0 {
		return 0
	}
	var sum float64
	for _, df := range docFreq {
		sum += bm25IDF(n, df)
	}
	return sum / float64(len(docFreq))
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Ensure Lexical implements Reranker at compile time.
var _ Reranker = (*Lexical)(nil)
