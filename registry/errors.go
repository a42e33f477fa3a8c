package registry

import (
	"errors"
	"fmt"
)

// ErrCallNotFound is returned when an operation references a call id that is
// not in the active partition. Calls that already reached a terminal status
// report the same error: they are no longer active.
var ErrCallNotFound = errors.New("call not found")

// DelegatedError wraps a failure reported by an external telephony or
// dispatch collaborator. The original error is preserved and reachable via
// errors.Unwrap.
type DelegatedError struct {
	Op  string
	Err error
}

func (e *DelegatedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DelegatedError) Unwrap() error { return e.Err }

// IsDelegated reports whether err originates from a delegated action.
func IsDelegated(err error) bool {
	var de *DelegatedError
	return errors.As(err, &de)
}
