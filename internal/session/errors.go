package session

import (
	"errors"
	"fmt"
)

// ErrSessionCancelled is returned by Feed once a session has been cancelled.
var ErrSessionCancelled = errors.New("session cancelled")

// ChainIntegrityError reports an out-of-order chain append. Ordering
// violations are the one class of error this package surfaces hard; content
// anomalies degrade instead.
type ChainIntegrityError struct {
	ChainID      string
	ResponseID   string
	WantPrevious string
	GotPrevious  string
	WantPosition int
	GotPosition  int
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf(
		"chain %s: response %s out of order (previous %q want %q, position %d want %d)",
		e.ChainID, e.ResponseID, e.GotPrevious, e.WantPrevious, e.GotPosition, e.WantPosition,
	)
}
