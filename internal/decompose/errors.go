package decompose

import (
	"errors"
	"fmt"
)

// ErrMalformedOutput indicates the planner returned text that could not be
// parsed into a usable list of work items.
var ErrMalformedOutput = errors.New("malformed planner output")

// Planning stages reported by OracleError.
const (
	StageOverview = "overview"
	StageSubtasks = "subtasks"
)

// OracleError describes a failed planner call or an unusable planner
// response. Raw holds the response text when there was one.
type OracleError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("%s planning: %v", e.Stage, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}
