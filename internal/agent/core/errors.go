package core

import (
	"errors"
	"fmt"
)

// ErrPipelineAborted is matched by every error a pipeline run returns after a stage failed.
var ErrPipelineAborted = errors.New("pipeline aborted")

// ErrFieldRewritten is returned when a stage delta tries to overwrite a field an earlier stage already wrote.
var ErrFieldRewritten = errors.New("state field already written")

// StageError reports which stage of which pipeline failed. It unwraps to both
// ErrPipelineAborted and the underlying cause.
type StageError struct {
	Pipeline Pipeline
	Stage    Stage
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s pipeline aborted at %s: %v", e.Pipeline, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error { return []error{ErrPipelineAborted, e.Err} }

// MalformedOutputError describes model output a stage could not interpret.
// It never leaves the stage: the stage substitutes a default and reports it.
type MalformedOutputError struct {
	Stage  Stage
	Reason string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed %s output: %s", e.Stage, e.Reason)
}

func abort(p Pipeline, s Stage, err error) error {
	return &StageError{Pipeline: p, Stage: s, Err: err}
}
