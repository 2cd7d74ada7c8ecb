package safety

import (
	"fmt"

	"saferag/internal/domain"
	"saferag/internal/similarity"
)

// DefaultSemanticThreshold is the similarity a query must strictly exceed to
// count as a semantic match. It sits high enough that generic wellness
// questions do not trip the refusal path.
const DefaultSemanticThreshold = 0.75

// SemanticMatch is the first unsafe intent that scored above the threshold.
type SemanticMatch struct {
	Intent string
	Score  float64
}

// Reason formats the match for a SafetyVerdict.
func (m SemanticMatch) Reason() string {
	return fmt.Sprintf("Semantic match with unsafe intent: \"%s\" (Score: %.2f)", m.Intent, m.Score)
}

// ScoreFunc observes each comparison; used for debug logging.
type ScoreFunc func(intent string, score float64)

// MatchSemantic scans intents in stored order and stops at the first one
// whose similarity with embedding is strictly greater than threshold.
func MatchSemantic(intents []domain.UnsafeIntent, embedding []float64, threshold float64, observe ScoreFunc) (SemanticMatch, bool) {
	for _, it := range intents {
		score := similarity.Cosine(embedding, it.Embedding)
		if observe != nil {
			observe(it.Text, score)
		}
		if score > threshold {
			return SemanticMatch{Intent: it.Text, Score: score}, true
		}
	}
	return SemanticMatch{}, false
}
