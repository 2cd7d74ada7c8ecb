// Package safety decides whether a query may be answered from the corpus.
//
// Two layers run in sequence. The keyword layer checks every category and
// reports all of them. The semantic layer compares the query embedding with
// curated unsafe intents and reports only the first match.
package safety

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"saferag/internal/domain"
	"saferag/internal/snapshot"
)

// ErrDimensionMismatch is returned when the query embedding and the unsafe
// intent snapshot disagree on vector size.
var ErrDimensionMismatch = errors.New("safety: embedding dimension mismatch")

type intentSet struct {
	dimension int
	intents   []domain.UnsafeIntent
}

// Classifier combines the keyword and semantic layers.
type Classifier struct {
	rules     []Rule
	threshold float64
	intents   atomic.Pointer[intentSet]
	logger    *log.Logger
	debug     bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRules replaces DefaultRules.
func WithRules(rules []Rule) Option { return func(c *Classifier) { c.rules = rules } }

// WithThreshold overrides DefaultSemanticThreshold.
func WithThreshold(t float64) Option { return func(c *Classifier) { c.threshold = t } }

// WithDebug logs every intent similarity.
func WithDebug(on bool) Option { return func(c *Classifier) { c.debug = on } }

func NewClassifier(logger *log.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = log.Default()
	}
	c := &Classifier{rules: DefaultRules, threshold: DefaultSemanticThreshold, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	c.intents.Store(&intentSet{})
	return c
}

// Load reads the unsafe intent snapshot. A missing file disables the
// semantic layer; a malformed one is an error.
func (c *Classifier) Load(path string) error {
	intents, found, err := snapshot.Read[domain.UnsafeIntent](path)
	if err != nil {
		return err
	}
	if !found {
		c.logger.Printf("no safety index at %s, semantic layer disabled", path)
	}
	if err := c.Replace(intents); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if found {
		c.logger.Printf("loaded %d safety intents from %s", len(intents), path)
	}
	return nil
}

// Replace swaps in a new intent set.
func (c *Classifier) Replace(intents []domain.UnsafeIntent) error {
	dim, err := ValidateIntents(intents)
	if err != nil {
		return err
	}
	c.intents.Store(&intentSet{dimension: dim, intents: intents})
	return nil
}

// ValidateIntents checks that every intent has the same vector size and
// returns it, 0 for an empty set.
func ValidateIntents(intents []domain.UnsafeIntent) (int, error) {
	if len(intents) == 0 {
		return 0, nil
	}
	dim := len(intents[0].Embedding)
	for _, it := range intents[1:] {
		if len(it.Embedding) != dim {
			return 0, fmt.Errorf("%w: intent %q has %d dimensions, expected %d", ErrDimensionMismatch, it.Text, len(it.Embedding), dim)
		}
	}
	return dim, nil
}

// Len returns the number of loaded unsafe intents.
func (c *Classifier) Len() int { return len(c.intents.Load().intents) }

// Threshold returns the semantic similarity threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Check classifies text. The semantic layer only runs when embedding is
// non-empty and intents are loaded.
func (c *Classifier) Check(text string, embedding []float64) (domain.SafetyVerdict, error) {
	reasons := MatchRules(c.rules, text)
	if reasons == nil {
		reasons = []string{}
	}
	verdict := domain.SafetyVerdict{IsUnsafe: len(reasons) > 0, Reasons: reasons}

	set := c.intents.Load()
	if len(embedding) == 0 || len(set.intents) == 0 {
		return verdict, nil
	}
	if len(embedding) != set.dimension {
		return verdict, fmt.Errorf("%w: query has %d dimensions, intents have %d", ErrDimensionMismatch, len(embedding), set.dimension)
	}
	var observe ScoreFunc
	if c.debug {
		observe = func(intent string, score float64) {
			c.logger.Printf("%q similarity: %.3f", intent, score)
		}
	}
	if m, ok := MatchSemantic(set.intents, embedding, c.threshold, observe); ok {
		verdict.IsUnsafe = true
		verdict.Reasons = append(verdict.Reasons, m.Reason())
	}
	return verdict, nil
}
