package triage

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad marks every failure to bring the model up. Load errors are terminal.
	ErrLoad = errors.New("model load failed")
	// ErrNotLoaded is returned by Classify and Get before a successful Load.
	ErrNotLoaded = errors.New("model not loaded")
)

// LoadStage names the load step that failed.
type LoadStage string

const (
	StageRuntime   LoadStage = "runtime"
	StageAdapter   LoadStage = "adapter"
	StageTokenizer LoadStage = "tokenizer"
	StageModel     LoadStage = "model"
)

type LoadError struct {
	Stage LoadStage
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrLoad, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}

func loadErr(stage LoadStage, err error) error {
	return &LoadError{Stage: stage, Err: err}
}
