package review

import (
	"errors"
	"fmt"
)

var (
	// ErrRowInFlight is returned when an action targets a row whose previous
	// update has not resolved yet.
	ErrRowInFlight = errors.New("review: row update already in flight")
	// ErrMissingRowID is returned when an action carries no row identifier.
	ErrMissingRowID = errors.New("review: missing row id")
	// ErrUnknownKind is returned when a panel is requested for an unregistered kind.
	ErrUnknownKind = errors.New("review: unknown record kind")
)

// BusinessRejection signals that the remote update completed but reported a
// non-success outcome, e.g. the record was already finalized.
type BusinessRejection struct {
	RowID  string
	Result Result
}

func (e *BusinessRejection) Error() string {
	return fmt.Sprintf("review: update %s rejected: %s", e.RowID, e.Result)
}

// TransportFailure signals that the remote call itself could not complete.
// Message carries the failure detail reported by the remote layer, if any.
type TransportFailure struct {
	Status  int
	Message string
	Err     error
}

func (e *TransportFailure) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("review: transport: %s: %v", e.Message, e.Err)
	case e.Message != "":
		return "review: transport: " + e.Message
	case e.Err != nil:
		return fmt.Sprintf("review: transport: %v", e.Err)
	default:
		return "review: transport failure"
	}
}

func (e *TransportFailure) Unwrap() error {
	return e.Err
}

// FailureDetail extracts the message a reviewer should see for a failed call:
// the payload message of a TransportFailure when present, otherwise the error
// text itself.
func FailureDetail(err error) string {
	if err == nil {
		return ""
	}
	var tf *TransportFailure
	if errors.As(err, &tf) {
		if tf.Message != "" {
			return tf.Message
		}
		if tf.Err != nil {
			return tf.Err.Error()
		}
	}
	return err.Error()
}
