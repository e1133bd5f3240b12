package enhance

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidParameters is the cause of every parameter validation failure.
var ErrInvalidParameters = errors.New("invalid enhancement parameters")

// ErrUnknownStrategy is returned by Registry.Get for unregistered names.
var ErrUnknownStrategy = errors.New("unknown enhancement strategy")

// EnhancementError is the single error surfaced by pipelines and the Enhancer.
// It names the stage that failed and keeps the underlying failure as its cause.
type EnhancementError struct {
	// Stage is the name of the failing stage, or "decode"/"encode" at the
	// codec boundary.
	Stage string
	// Err is the underlying failure.
	Err error
}

func (e *EnhancementError) Error() string {
	return fmt.Sprintf("enhancement failed at stage %q: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying failure for errors.Is/As.
func (e *EnhancementError) Unwrap() error { return e.Err }

// Cause returns the underlying failure for errors.Cause.
func (e *EnhancementError) Cause() error { return e.Err }

// wrapStage wraps err in an *EnhancementError unless it already is one.
func wrapStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EnhancementError
	if errors.As(err, &existing) {
		return err
	}
	return &EnhancementError{Stage: stage, Err: err}
}
