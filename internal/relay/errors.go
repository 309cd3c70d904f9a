package relay

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInputMalformed       Kind = "INPUT_MALFORMED"
	KindUpstreamUnavailable  Kind = "UPSTREAM_UNAVAILABLE"
	KindUpstreamStreamBroken Kind = "UPSTREAM_STREAM_BROKEN"
	KindFrameParse           Kind = "FRAME_PARSE_ERROR"
)

// Error is a classified relay failure.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("relay: %s (%s)", e.Kind, e.Reason)
	}
	return fmt.Sprintf("relay: %s (%s): %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
