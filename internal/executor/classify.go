package executor

import "strings"

// Class categorizes the outcome of executing a subtask.
type Class string

const (
	// ClassNone is the class of a successful execution.
	ClassNone Class = ""
	// ClassUnknownOperation means the subtask named an unregistered operation.
	ClassUnknownOperation Class = "unknown_operation"
	// ClassPermanent means the failure will not go away by retrying.
	ClassPermanent Class = "permanent"
	// ClassTransient means the failure may succeed on another attempt.
	ClassTransient Class = "transient"
	// ClassCancelled means the context ended before the subtask completed.
	ClassCancelled Class = "cancelled"
)

// permanentMarkers are substrings of error text that identify failures no
// retry can fix.
var permanentMarkers = []string{
	"not found",
	"no such file",
	"permission denied",
	"invalid parameters",
	"unknown tool",
	"unknown operation",
}

// Classify decides whether an operation error is permanent or transient.
func Classify(errText string) Class {
	lower := strings.ToLower(errText)
	for _, marker := range permanentMarkers {
		if strings.Contains(lower, marker) {
			return ClassPermanent
		}
	}
	return ClassTransient
}
