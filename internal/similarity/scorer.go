package similarity

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/strmatch/internal/labels"
)

// Algorithm names a similarity measure
type Algorithm string

const (
	// RatcliffObershelp is the matching-blocks ratio 2*M/T (default)
	RatcliffObershelp     Algorithm = "ratcliff-obershelp"
	Levenshtein           Algorithm = "levenshtein"
	DamerauLevenshtein    Algorithm = "damerau-levenshtein"
	OSADamerauLevenshtein Algorithm = "osa-damerau-levenshtein"
	LCS                   Algorithm = "lcs"
	Jaro                  Algorithm = "jaro"
	JaroWinkler           Algorithm = "jaro-winkler"
	Cosine                Algorithm = "cosine"
	Jaccard               Algorithm = "jaccard"
	SorensenDice          Algorithm = "sorensen-dice"
	Qgram                 Algorithm = "qgram"
)

// DefaultAlgorithm is used when no algorithm is configured
const DefaultAlgorithm = RatcliffObershelp

var edlibAlgorithms = map[Algorithm]edlib.Algorithm{
	Levenshtein:           edlib.Levenshtein,
	DamerauLevenshtein:    edlib.DamerauLevenshtein,
	OSADamerauLevenshtein: edlib.OSADamerauLevenshtein,
	LCS:                   edlib.Lcs,
	Jaro:                  edlib.Jaro,
	JaroWinkler:           edlib.JaroWinkler,
	Cosine:                edlib.Cosine,
	Jaccard:               edlib.Jaccard,
	SorensenDice:          edlib.SorensenDice,
	Qgram:                 edlib.Qgram,
}

// Algorithms lists every supported algorithm, default first
func Algorithms() []Algorithm {
	return []Algorithm{
		RatcliffObershelp, Levenshtein, DamerauLevenshtein, OSADamerauLevenshtein,
		LCS, Jaro, JaroWinkler, Cosine, Jaccard, SorensenDice, Qgram,
	}
}

// ParseAlgorithm resolves a configured algorithm name; empty means default
func ParseAlgorithm(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultAlgorithm, nil
	}
	algo := Algorithm(name)
	if algo == RatcliffObershelp {
		return algo, nil
	}
	if _, ok := edlibAlgorithms[algo]; ok {
		return algo, nil
	}
	return "", fmt.Errorf("unknown similarity algorithm %q", name)
}

// Scorer computes normalized similarity ratios between labels.
// It is safe for concurrent use.
type Scorer struct {
	algorithm Algorithm
	matchers  sync.Pool
}

// NewScorer creates a scorer for the given algorithm
func NewScorer(algorithm Algorithm) (*Scorer, error) {
	algo, err := ParseAlgorithm(string(algorithm))
	if err != nil {
		return nil, err
	}
	s := &Scorer{algorithm: algo}
	s.matchers.New = func() any { return newSequenceMatcher() }
	return s, nil
}

// Algorithm returns the configured algorithm
func (s *Scorer) Algorithm() Algorithm {
	return s.algorithm
}

// Score returns the similarity of a and b in [0,1]. The second result is false
// when either label is absent; the score is then undefined.
func (s *Scorer) Score(a, b labels.Label) (float64, bool) {
	if !a.Present || !b.Present {
		return 0, false
	}
	return s.Ratio(a.Text, b.Text), true
}

// Ratio returns the similarity of two present strings
func (s *Scorer) Ratio(a, b string) float64 {
	if s.algorithm == RatcliffObershelp {
		return s.gestaltRatio(a, b)
	}
	return edlibRatio(a, b, edlibAlgorithms[s.algorithm])
}

func (s *Scorer) gestaltRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	// Matching blocks depend on argument order; a fixed order keeps the score symmetric
	if a > b {
		a, b = b, a
	}

	m := s.matchers.Get().(*sequenceMatcher)
	defer s.matchers.Put(m)

	ra := appendRunes(m.a[:0], a)
	rb := appendRunes(m.b[:0], b)
	m.setSeqs(ra, rb)
	return m.ratio()
}

// edlibRatio wraps go-edlib, which reports errors for some inputs instead of a score
func edlibRatio(a, b string, algo edlib.Algorithm) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	score, err := edlib.StringsSimilarity(a, b, algo)
	if err != nil {
		return 0.0
	}
	v := float64(score)
	if math.IsNaN(v) {
		return 0.0
	}
	return math.Max(0, math.Min(1, v))
}

func appendRunes(dst []rune, s string) []rune {
	for _, r := range s {
		dst = append(dst, r)
	}
	return dst
}

var defaultScorer, _ = NewScorer(DefaultAlgorithm)

// Ratio returns the Ratcliff/Obershelp similarity of a and b
func Ratio(a, b string) float64 {
	return defaultScorer.Ratio(a, b)
}

// Score returns the Ratcliff/Obershelp similarity of two optional labels
func Score(a, b labels.Label) (float64, bool) {
	return defaultScorer.Score(a, b)
}
