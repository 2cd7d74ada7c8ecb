// Package summarizer produces short extractive digests of corpus documents,
// printed after an index build so operators can eyeball what was ingested.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"saferag/internal/domain"
)

var (
	tokenRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// Digest is the summary of one document.
type Digest struct {
	Title   string
	Summary string
}

// Frequency ranks sentences by the normalised frequency of their non-stopword tokens.
type Frequency struct {
	stopwords map[string]struct{}
}

func NewFrequency() *Frequency {
	return &Frequency{stopwords: defaultStopwords()}
}

// Summarize keeps the maxSentences best sentences in their original order.
func (f *Frequency) Summarize(text string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = 2
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}

	freq := map[string]float64{}
	top := 0.0
	for _, sent := range sentences {
		for _, tok := range tokens(sent) {
			if _, ok := f.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
			top = math.Max(top, freq[tok])
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, sent := range sentences {
		toks := tokens(sent)
		s := 0.0
		for _, tok := range toks {
			s += freq[tok] / top
		}
		if len(toks) > 0 {
			s /= math.Sqrt(float64(len(toks)))
		}
		ranked[i] = scored{i, s}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if maxSentences > len(ranked) {
		maxSentences = len(ranked)
	}
	picked := make([]int, maxSentences)
	for i := range picked {
		picked[i] = ranked[i].idx
	}
	sort.Ints(picked)

	out := make([]string, len(picked))
	for i, idx := range picked {
		out[i] = strings.TrimSpace(sentences[idx])
	}
	return strings.Join(out, " ")
}

// DigestDocuments summarises each document to at most maxSentences sentences.
func (f *Frequency) DigestDocuments(docs []domain.Document, maxSentences int) []Digest {
	out := make([]Digest, len(docs))
	for i, d := range docs {
		out[i] = Digest{Title: d.Title, Summary: f.Summarize(d.Content, maxSentences)}
	}
	return out
}

func tokens(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "into", "about", "between", "through", "during", "before", "after", "your", "you", "can", "will", "just", "should", "now", "may", "helps",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
