package saga

import (
	"fmt"
	"strings"
)

// Outcome identifies the active variant of a Result.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCompensated
	OutcomeCompensationFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCompensated:
		return "compensated"
	case OutcomeCompensationFailed:
		return "compensation_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the terminal state of a Coordinator run. Only the fields of the
// active Outcome are meaningful.
type Result struct {
	Outcome Outcome

	// Value is the result of the last declared step (Completed).
	Value any

	// FailedStep names the step whose forward action exhausted its retries,
	// and FailureReason is its last error (Compensated, CompensationFailed).
	FailedStep    string
	FailureReason string

	// CompensatedSteps lists rolled back steps, most recent first.
	CompensatedSteps []string

	// FailedAtStep and CompensationError describe the compensation that
	// failed (CompensationFailed).
	FailedAtStep      string
	CompensationError string
}

// Completed builds a successful result.
func Completed(value any) Result {
	return Result{Outcome: OutcomeCompleted, Value: value}
}

// Compensated builds a rolled back result.
func Compensated(failedStep string, compensated []string) Result {
	return Result{Outcome: OutcomeCompensated, FailedStep: failedStep, CompensatedSteps: compensated}
}

// CompensationFailed builds a result that needs manual remediation.
func CompensationFailed(failedStep, compensationErr, failedAtStep string) Result {
	return Result{
		Outcome:           OutcomeCompensationFailed,
		FailedStep:        failedStep,
		CompensationError: compensationErr,
		FailedAtStep:      failedAtStep,
	}
}

func (r Result) String() string {
	switch r.Outcome {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCompensated:
		return fmt.Sprintf("compensated after %s failed (rolled back: %s)", r.FailedStep, strings.Join(r.CompensatedSteps, ", "))
	default:
		return fmt.Sprintf("compensation failed at %s after %s failed: %s", r.FailedAtStep, r.FailedStep, r.CompensationError)
	}
}

// CompensatedError reports a saga that failed and was fully rolled back.
type CompensatedError struct {
	Saga   string
	Result Result
}

func (e *CompensatedError) Error() string {
	return fmt.Sprintf("saga failed and was compensated: %s", e.Result.FailedStep)
}

// CompensationFailedError reports a saga whose rollback itself failed.
// External state may be inconsistent.
type CompensationFailedError struct {
	Saga   string
	Result Result
}

func (e *CompensationFailedError) Error() string {
	return fmt.Sprintf("saga failed (%s) and compensation also failed at '%s': %s",
		e.Result.FailedStep, e.Result.FailedAtStep, e.Result.CompensationError)
}
