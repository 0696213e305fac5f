package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// stopWords are dropped before weighting terms.
var stopWords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true, "all": true,
	"also": true, "am": true, "an": true, "and": true, "any": true, "are": true,
	"as": true, "at": true, "be": true, "because": true, "been": true, "before": true,
	"being": true, "below": true, "between": true, "both": true, "but": true, "by": true,
	"can": true, "could": true, "did": true, "do": true, "does": true, "doing": true,
	"down": true, "during": true, "each": true, "etc": true, "few": true, "for": true,
	"from": true, "further": true, "had": true, "has": true, "have": true, "having": true,
	"he": true, "her": true, "here": true, "hers": true, "him": true, "his": true,
	"how": true, "i": true, "if": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "just": true, "me": true, "more": true, "most": true,
	"must": true, "my": true, "no": true, "nor": true, "not": true, "of": true,
	"off": true, "on": true, "once": true, "only": true, "or": true, "other": true,
	"our": true, "ours": true, "out": true, "over": true, "own": true, "same": true,
	"she": true, "should": true, "so": true, "some": true, "such": true, "than": true,
	"that": true, "the": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "through": true, "to": true,
	"too": true, "under": true, "until": true, "up": true, "very": true, "was": true,
	"we": true, "were": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "who": true, "whom": true, "why": true, "will": true, "with": true,
	"would": true, "you": true, "your": true, "yours": true,
}

// tokenize splits text into lower-cased terms, keeping symbols that belong to
// technology names (c++, c#, node.js) and dropping stop words.
func tokenize(text string) []string {
	words := strings.FieldsFunc(foldText(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#' && r != '.'
	})

	terms := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.Trim(word, ".")
		if utf8.RuneCountInString(cleaned) < 2 || stopWords[cleaned] {
			continue
		}
		terms = append(terms, cleaned)
	}

	return terms
}

type termWeight struct {
	term   int
	weight float64
}

// TermVector is an L2-normalized sparse vector sorted by term index.
type TermVector []termWeight

// Cosine returns the cosine similarity of two vectors from the same model.
func (v TermVector) Cosine(o TermVector) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(v) && j < len(o) {
		switch {
		case v[i].term == o[j].term:
			dot += v[i].weight * o[j].weight
			i++
			j++
		case v[i].term < o[j].term:
			i++
		default:
			j++
		}
	}
	return clamp01(dot)
}

// TextModel holds a vocabulary and inverse document frequencies fitted over a
// corpus. It is read-only after FitTextModel and safe for concurrent use.
type TextModel struct {
	vocab map[string]int
	idf   []float64
}

// FitTextModel builds a model over docs using smoothed IDF:
// ln((1+n)/(1+df)) + 1.
func FitTextModel(docs ...string) *TextModel {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range tokenize(doc) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	model := &TextModel{
		vocab: make(map[string]int, len(terms)),
		idf:   make([]float64, len(terms)),
	}
	for i, term := range terms {
		model.vocab[term] = i
		model.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	return model
}

// VocabularySize returns the number of distinct terms the model knows.
func (m *TextModel) VocabularySize() int {
	if m == nil {
		return 0
	}
	return len(m.vocab)
}

// Vectorize returns the TF-IDF vector of doc. Terms outside the vocabulary are
// ignored.
func (m *TextModel) Vectorize(doc string) (TermVector, error) {
	if m == nil || len(m.vocab) == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", ErrVectorizationFailure)
	}

	counts := make(map[int]float64)
	for _, term := range tokenize(doc) {
		if idx, ok := m.vocab[term]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("%w: no known terms in text", ErrVectorizationFailure)
	}

	vec := make(TermVector, 0, len(counts))
	for idx, tf := range counts {
		vec = append(vec, termWeight{term: idx, weight: tf * m.idf[idx]})
	}
	sort.Slice(vec, func(i, j int) bool { return vec[i].term < vec[j].term })

	var norm float64
	for _, tw := range vec {
		norm += tw.weight * tw.weight
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, fmt.Errorf("%w: zero-length vector", ErrVectorizationFailure)
	}
	for i := range vec {
		vec[i].weight /= norm
	}

	return vec, nil
}

// Similarity returns the cosine similarity of a and b under the model.
func (m *TextModel) Similarity(a, b string) (float64, error) {
	va, err := m.Vectorize(a)
	if err != nil {
		return 0, err
	}
	vb, err := m.Vectorize(b)
	if err != nil {
		return 0, err
	}
	return va.Cosine(vb), nil
}

// TextSimilarity fits a model over the two documents and compares them. Any
// vectorization failure yields 0.
func TextSimilarity(resumeText, jobText string) float64 {
	sim, err := FitTextModel(resumeText, jobText).Similarity(resumeText, jobText)
	if err != nil {
		return 0
	}
	return sim
}
