package transfer

import (
	"errors"
	"fmt"
)

// Kind classifies a transfer failure. The orchestrator's retry loop keys
// off the Retryable flag, never off raw status codes.
type Kind string

const (
	KindSizeUnavailable     Kind = "SizeUnavailable"
	KindProbeTimeout        Kind = "ProbeTimeout"
	KindSourceFetchFailed   Kind = "SourceFetchFailed"
	KindSourceTimeout       Kind = "SourceTimeout"
	KindUpstreamServerError Kind = "UpstreamServerError"
	KindResumeIncomplete    Kind = "ResumeIncomplete"
	KindUpstreamRejected    Kind = "UpstreamRejected"
	KindTransport           Kind = "TransportError"
)

// Error is a classified transfer failure.
type Error struct {
	Kind       Kind
	Retryable  bool
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Classify normalizes err into an *Error. Already-classified errors pass
// through; anything else is a transport-level failure (connection reset,
// timeout) and is retryable.
func Classify(err error) *Error {
	var terr *Error
	if errors.As(err, &terr) {
		return terr
	}
	return &Error{Kind: KindTransport, Retryable: true, Err: err}
}
