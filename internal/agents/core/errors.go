package core

import (
	"errors"
	"fmt"
)

// Pipeline stage names, also used as metric and log tags
const (
	StageAnalysis    = "analysis"
	StageComposition = "composition"
)

// ErrStageTimeout is wrapped when a stage exceeds its time budget
var ErrStageTimeout = errors.New("stage timed out")

// ValidationError reports bad caller input, detected before any model call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// GenerationError reports a failed pipeline stage: provider failure, timeout or
// contract violation. Stages never retry.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage carried by err, or "" if err is not a GenerationError
func StageOf(err error) string {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Stage
	}
	return ""
}
