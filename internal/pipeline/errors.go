package pipeline

import (
	"errors"
	"fmt"

	"github.com/yourorg/campaign-agency/internal/campaign"
)

var (
	// ErrRegenerationLimit is returned when a REGENERATE decision would
	// exceed the configured per-stage budget.
	ErrRegenerationLimit = errors.New("regeneration limit exceeded")

	// ErrValidation wraps payload schema failures on EDIT decisions.
	ErrValidation = errors.New("payload validation failed")
)

// ExecutorError reports a stage executor failure. Transient errors (timeouts,
// quota) may be retried by the driver; permanent ones (malformed or rejected
// output) are surfaced as-is. The session is left unchanged either way.
type ExecutorError struct {
	Stage     campaign.Stage
	Transient bool
	Err       error
}

func (e *ExecutorError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("executor %s failed (%s): %v", e.Stage, kind, e.Err)
}

func (e *ExecutorError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable executor failure.
func IsTransient(err error) bool {
	var ee *ExecutorError
	return errors.As(err, &ee) && ee.Transient
}

func validationErr(stage campaign.Stage, err error) error {
	return fmt.Errorf("%w: stage %s: %v", ErrValidation, stage, err)
}
