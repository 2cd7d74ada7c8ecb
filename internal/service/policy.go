// Package service holds the answering policy: it classifies the query, then
// either refuses, falls back, or answers from retrieved context.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"saferag/internal/domain"
	"saferag/internal/vectorstore"
)

const (
	// DefaultTopK is how many chunks are offered to the completion service.
	DefaultTopK = 3
	// DefaultMinScore is the best-match similarity below which the corpus is
	// treated as not knowing the answer. Answering under it invites the model
	// to hallucinate.
	DefaultMinScore = 0.22
)

// Classifier is the safety gate run before retrieval.
type Classifier interface {
	Check(text string, embedding []float64) (domain.SafetyVerdict, error)
}

// Recorder persists answered interactions and returns their id.
type Recorder interface {
	Save(ctx context.Context, rec *domain.Interaction) (string, error)
}

// Outcome is the terminal branch the policy took.
type Outcome string

const (
	OutcomeUnsafe    Outcome = "unsafe"
	OutcomeFallback  Outcome = "fallback"
	OutcomeAugmented Outcome = "augmented"
)

// Answer is handed back to the transport layer.
type Answer struct {
	ID      string
	Query   string
	Text    string
	Sources []string
	Verdict domain.SafetyVerdict
	Outcome Outcome
	// Results are the retrieved chunks; always empty on the unsafe branch.
	Results []domain.SearchResult
	// Completed reports whether the completion service produced Text.
	Completed bool
}

// Options tunes the policy. Zero values select the defaults.
type Options struct {
	TopK            int
	MinScore        float64
	EmbedTimeout    time.Duration
	CompleteTimeout time.Duration
}

// Deps are the collaborators of the policy. Completer and Recorder may be nil.
type Deps struct {
	Embedder   domain.Embedder
	Classifier Classifier
	Retriever  vectorstore.Searcher
	Completer  domain.Completer
	Recorder   Recorder
	Logger     *log.Logger
}

type Policy struct {
	embedder   domain.Embedder
	classifier Classifier
	retriever  vectorstore.Searcher
	completer  domain.Completer
	recorder   Recorder
	opts       Options
	logger     *log.Logger
	now        func() time.Time
}

func NewPolicy(d Deps, opts Options) *Policy {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MinScore == 0 {
		opts.MinScore = DefaultMinScore
	}
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Policy{
		embedder:   d.Embedder,
		classifier: d.Classifier,
		retriever:  d.Retriever,
		completer:  d.Completer,
		recorder:   d.Recorder,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Ask runs the full answering flow for one query.
func (p *Policy) Ask(ctx context.Context, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	vec, err := p.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	verdict, err := p.classifier.Check(query, vec)
	if err != nil {
		// a keyword match is already a refusal; only an undecided query fails closed
		if !verdict.IsUnsafe {
			return nil, stageError(StageClassify, err)
		}
		p.logger.Printf("semantic safety check skipped: %v", err)
	}
	ans := &Answer{Query: query, Verdict: verdict, Sources: []string{}}

	var messages []domain.Message
	if verdict.IsUnsafe {
		ans.Outcome = OutcomeUnsafe
		messages = UnsafeMessages(query)
		p.logger.Printf("query flagged unsafe: %s", strings.Join(verdict.Reasons, "; "))
	} else {
		results, err := p.retriever.Search(vec, p.opts.TopK)
		if err != nil {
			return nil, stageError(StageRetrieve, err)
		}
		ans.Results = results
		for _, r := range results {
			ans.Sources = append(ans.Sources, r.Source)
		}
		p.logger.Printf("top matches: %s", describe(results))

		if len(results) == 0 || results[0].Score < p.opts.MinScore {
			ans.Outcome = OutcomeFallback
			ans.Text = FallbackAnswer
		} else {
			ans.Outcome = OutcomeAugmented
			messages = SafeMessages(query, results)
		}
	}

	if ans.Outcome != OutcomeFallback {
		if p.completer == nil {
			ans.Text = NotConfiguredAnswer
		} else {
			text, err := p.complete(ctx, messages)
			if err != nil {
				return nil, err
			}
			ans.Text = text
			ans.Completed = true
		}
	}

	p.record(ctx, ans)
	return ans, nil
}

func (p *Policy) embed(ctx context.Context, query string) ([]float64, error) {
	callCtx, cancel := withTimeout(ctx, p.opts.EmbedTimeout)
	defer cancel()
	vec, err := p.embedder.Embed(callCtx, query)
	if err != nil {
		return nil, stageError(StageEmbed, markDeadline(callCtx, err))
	}
	return vec, nil
}

func (p *Policy) complete(ctx context.Context, messages []domain.Message) (string, error) {
	callCtx, cancel := withTimeout(ctx, p.opts.CompleteTimeout)
	defer cancel()
	text, err := p.completer.Complete(callCtx, messages)
	if err != nil {
		return "", stageError(StageComplete, markDeadline(callCtx, err))
	}
	return text, nil
}

func (p *Policy) record(ctx context.Context, ans *Answer) {
	if p.recorder == nil {
		return
	}
	rec := &domain.Interaction{
		Query:         ans.Query,
		Answer:        ans.Text,
		Sources:       ans.Sources,
		IsUnsafe:      ans.Verdict.IsUnsafe,
		UnsafeReasons: ans.Verdict.Reasons,
		Timestamp:     p.now().UTC(),
	}
	id, err := p.recorder.Save(ctx, rec)
	if err != nil {
		p.logger.Printf("failed to record interaction: %v", err)
		return
	}
	ans.ID = id
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// markDeadline makes sure a call that ran out of time is recognisable even
// when the client library reports it with its own error type.
func markDeadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

func describe(results []domain.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("%s (%.2f)", r.Source, r.Score)
	}
	return strings.Join(parts, ", ")
}
