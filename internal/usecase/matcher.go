package usecase

import (
	"log"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Package-level compiled regex patterns for performance
var (
	// nonWordRegex removes every rune that is not a Unicode letter,
	// digit, or whitespace. Product names arrive in mixed scripts
	// (including right-to-left text), so ASCII classes are not enough.
	nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

const (
	// defaultSimilarityThreshold is the minimum bigram score for two
	// non-identical, non-containing names to count as the same product.
	defaultSimilarityThreshold = 0.7

	// minContainmentRunes guards the substring rule against trivially
	// short names matching everything.
	minContainmentRunes = 2
)

// SimilarityFunc scores two normalized names in [0,1]. Any bigram,
// Jaccard, or edit-distance metric honoring the configured threshold
// semantics is substitutable.
type SimilarityFunc func(a, b string) float64

// MatcherConfig holds configuration for the name matcher
type MatcherConfig struct {
	SimilarityThreshold float64
	Similarity          SimilarityFunc
	EnableDebugLogging  bool
}

// NameMatcher decides whether two free-text product names denote the
// same product, tolerating punctuation, casing, and minor phrasing
// differences.
type NameMatcher struct {
	threshold          float64
	similarity         SimilarityFunc
	enableDebugLogging bool
}

// NewNameMatcher creates a new name matcher with the given configuration
func NewNameMatcher(config MatcherConfig) *NameMatcher {
	threshold := config.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultSimilarityThreshold
	}

	similarity := config.Similarity
	if similarity == nil {
		similarity = DiceSimilarity
	}

	return &NameMatcher{
		threshold:          threshold,
		similarity:         similarity,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// NormalizeName lowercases a product name, strips every rune that is
// not a letter, digit, or whitespace, and collapses runs of whitespace
// to single spaces.
func NormalizeName(name string) string {
	s := strings.ToLower(name)
	s = nonWordRegex.ReplaceAllString(s, "")
	s = multipleSpacesRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// IsSimilar reports whether two product names refer to the same
// product: identical normalized forms, containment (with the shorter
// name longer than two runes), or bigram similarity at or above the
// threshold. Deterministic and pure. Two empty names are similar;
// callers must require non-empty names before invoking.
func (m *NameMatcher) IsSimilar(nameA, nameB string) bool {
	a := NormalizeName(nameA)
	b := NormalizeName(nameB)

	if a == b {
		return true
	}

	shorter, longer := a, b
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	if utf8.RuneCountInString(shorter) > minContainmentRunes && strings.Contains(longer, shorter) {
		return true
	}

	score := m.similarity(a, b)
	if m.enableDebugLogging {
		log.Printf("[MATCH] %q vs %q | score: %.2f | threshold: %.2f", a, b, score, m.threshold)
	}

	return score >= m.threshold
}

// DiceSimilarity is the Sørensen-Dice coefficient over rune bigrams of
// the whitespace-stripped inputs. Returns 1 for identical strings and 0
// when either input has no bigrams.
func DiceSimilarity(a, b string) float64 {
	ra := stripSpaces(a)
	rb := stripSpaces(b)

	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) < 2 || len(rb) < 2 {
		if string(ra) == string(rb) {
			return 1
		}
		return 0
	}

	bigrams := make(map[string]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		bigrams[string(ra[i:i+2])]++
	}

	matches := 0
	for i := 0; i < len(rb)-1; i++ {
		key := string(rb[i : i+2])
		if bigrams[key] > 0 {
			bigrams[key]--
			matches++
		}
	}

	return 2 * float64(matches) / float64(len(ra)+len(rb)-2)
}

// stripSpaces drops all whitespace so word order inside a name does not
// fragment the bigram set at word boundaries.
func stripSpaces(s string) []rune {
	runes := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		runes = append(runes, r)
	}
	return runes
}
