package inspector

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is against these to classify an inspection failure.
var (
	// ErrInspection is the root of the failure family. Every *Error except
	// a not-implemented one matches it.
	ErrInspection = errors.New("inspection failed")

	// ErrEndpointUnreachable means the agent did not answer in time.
	ErrEndpointUnreachable = errors.New("endpoint unreachable")

	// ErrNotImplemented means the inspector cannot serve this capability
	// (or this host). It is an expected configuration state.
	ErrNotImplemented = errors.New("not implemented")
)

// Error is the only error type inspectors return.
type Error struct {
	Kind      error
	Inspector string
	Host      string
	Metric    string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	switch {
	case e.Inspector != "" && e.Host != "":
		return fmt.Sprintf("inspector %s: %s on %s: %s", e.Inspector, e.Metric, e.Host, msg)
	case e.Inspector != "":
		return fmt.Sprintf("inspector %s: %s", e.Inspector, msg)
	default:
		return msg
	}
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is makes an unreachable endpoint also match ErrInspection.
func (e *Error) Is(target error) bool {
	return target == ErrInspection && e.Kind != ErrNotImplemented
}

// Failed returns an ErrInspection error.
func Failed(format string, args ...any) error {
	return &Error{Kind: ErrInspection, Err: fmt.Errorf(format, args...)}
}

// Unreachable wraps a transport failure as ErrEndpointUnreachable.
func Unreachable(err error) error {
	return &Error{Kind: ErrEndpointUnreachable, Err: err}
}

// NotImplemented returns an ErrNotImplemented error with a reason.
func NotImplemented(reason string) error {
	return &Error{Kind: ErrNotImplemented, Err: errors.New(reason)}
}

// Annotate stamps inspector, host and metric onto err. Errors outside the
// family are wrapped as ErrInspection so callers only ever see *Error.
func Annotate(err error, inspector, host, metric string) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		out := *ie
		out.Inspector, out.Host, out.Metric = inspector, host, metric
		return &out
	}
	return &Error{Kind: ErrInspection, Inspector: inspector, Host: host, Metric: metric, Err: err}
}

// IsInspectionError reports whether err means the inspector failed for this
// host and cycle (as opposed to not supporting the request at all).
func IsInspectionError(err error) bool {
	return errors.Is(err, ErrInspection)
}
