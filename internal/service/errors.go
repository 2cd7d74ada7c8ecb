package service

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery rejects blank input before any external call.
	ErrEmptyQuery = errors.New("query required")
	// ErrEmbedding marks failures of the embedding service.
	ErrEmbedding = errors.New("embedding failed")
	// ErrCompletion marks failures of the completion service.
	ErrCompletion = errors.New("completion failed")
	// ErrTimeout is set in addition to the stage error when a call ran out of time.
	ErrTimeout = errors.New("timed out")
)

// Stage names the step of the answering flow that failed.
type Stage string

const (
	StageEmbed    Stage = "embed"
	StageClassify Stage = "classify"
	StageRetrieve Stage = "retrieve"
	StageComplete Stage = "complete"
)

// Error wraps a failure with the stage it happened in.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the stage sentinel and ErrTimeout.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrEmbedding:
		return e.Stage == StageEmbed
	case ErrCompletion:
		return e.Stage == StageComplete
	case ErrTimeout:
		if errors.Is(e.Err, context.DeadlineExceeded) {
			return true
		}
		var te interface{ Timeout() bool }
		return errors.As(e.Err, &te) && te.Timeout()
	}
	return false
}

func stageError(stage Stage, err error) error {
	return &Error{Stage: stage, Err: err}
}
