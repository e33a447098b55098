package correlation

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	categoricalWeight = 0.6
	textWeight        = 0.4

	// maxVocabularyTerms caps the per-comparison TF-IDF vocabulary
	maxVocabularyTerms = 1000
)

// categoricalFields is the fixed field set compared for the categorical
// sub-score. Only fields present in both mappings count toward the
// denominator.
var categoricalFields = []string{
	"source", "severity", "alert_type", "log_level",
	"service", "host", "environment",
}

// wordPattern matches tokens of two or more word characters
var wordPattern = regexp.MustCompile(`\w\w+`)

// Similarity computes a bounded [0,1] score between two feature mappings as
// a weighted blend of categorical agreement and text cosine similarity.
// Malformed input degrades to a zero sub-score rather than failing.
func Similarity(a, b Features) float64 {
	categorical := categoricalSimilarity(a, b)
	text := textSimilarity(joinTextFields(a), joinTextFields(b))
	return categorical*categoricalWeight + text*textWeight
}

// categoricalSimilarity scores exact agreement over the fixed categorical
// field set: matches/total over fields present in both mappings, 0.0 when
// no field is comparable.
func categoricalSimilarity(a, b Features) float64 {
	matches := 0
	total := 0

	for _, field := range categoricalFields {
		va, okA := a[field]
		vb, okB := b[field]
		if !okA || !okB {
			continue
		}
		total++
		if va == vb {
			matches++
		}
	}

	if total == 0 {
		return 0.0
	}
	return float64(matches) / float64(total)
}

// joinTextFields concatenates the text fields of a feature mapping into a
// single document
func joinTextFields(f Features) string {
	parts := make([]string, 0, len(textFields))
	for _, field := range textFields {
		parts = append(parts, f[field])
	}
	return strings.Join(parts, " ")
}

// textSimilarity vectorizes two documents with a per-pair TF-IDF fit
// (English stop words removed, vocabulary capped) and returns the cosine
// similarity of their vectors. Empty documents score 0.0.
func textSimilarity(doc1, doc2 string) float64 {
	if strings.TrimSpace(doc1) == "" || strings.TrimSpace(doc2) == "" {
		return 0.0
	}

	tokens1 := tokenize(doc1)
	tokens2 := tokenize(doc2)
	if len(tokens1) == 0 && len(tokens2) == 0 {
		return 0.0
	}

	vocab := buildVocabulary(tokens1, tokens2)
	if len(vocab) == 0 {
		return 0.0
	}

	v1 := tfidfVector(tokens1, tokens2, vocab)
	v2 := tfidfVector(tokens2, tokens1, vocab)

	return cosineSimilarity(v1, v2)
}

// tokenize lowercases a document and extracts word tokens, dropping English
// stop words
func tokenize(doc string) []string {
	words := wordPattern.FindAllString(strings.ToLower(doc), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// buildVocabulary collects the joint term set of both documents, keeping at
// most maxVocabularyTerms terms ranked by corpus frequency
func buildVocabulary(tokens1, tokens2 []string) map[string]int {
	counts := make(map[string]int)
	for _, t := range tokens1 {
		counts[t]++
	}
	for _, t := range tokens2 {
		counts[t]++
	}

	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > maxVocabularyTerms {
		terms = terms[:maxVocabularyTerms]
	}

	vocab := make(map[string]int, len(terms))
	sort.Strings(terms)
	for i, t := range terms {
		vocab[t] = i
	}
	return vocab
}

// tfidfVector builds the l2-normalized TF-IDF vector for doc over the joint
// vocabulary. The idf uses the smoothed form ln((1+n)/(1+df))+1 with n=2,
// fit on exactly the two documents being compared.
func tfidfVector(doc, other []string, vocab map[string]int) []float64 {
	tf := make(map[string]int, len(doc))
	for _, t := range doc {
		tf[t]++
	}
	otherSet := make(map[string]bool, len(other))
	for _, t := range other {
		otherSet[t] = true
	}

	vec := make([]float64, len(vocab))
	for term, idx := range vocab {
		count := tf[term]
		if count == 0 {
			continue
		}
		df := 1
		if otherSet[term] {
			df = 2
		}
		idf := math.Log(3.0/float64(1+df)) + 1.0
		vec[idx] = float64(count) * idf
	}

	return l2Normalize(vec)
}

// l2Normalize scales a vector to unit length; a zero vector is returned
// unchanged
func l2Normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// cosineSimilarity computes the cosine of the angle between two vectors
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
