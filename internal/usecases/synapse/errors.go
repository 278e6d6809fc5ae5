package synapse

import "fmt"

// ErrorKind classifies why a call to the homeserver failed.
type ErrorKind int

const (
	KindTransport        ErrorKind = iota // connection refused, timeout, broken body
	KindNonce                             // nonce response was not usable
	KindUnexpectedStatus                  // homeserver answered with a status we do not handle
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindNonce:
		return "nonce"
	case KindUnexpectedStatus:
		return "unexpected_status"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// UpstreamError is returned for every homeserver failure other than a
// duplicate username. StatusCode and Body are only set for KindUnexpectedStatus.
type UpstreamError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch e.Kind {
	case KindUnexpectedStatus:
		return fmt.Sprintf("%s: unexpected upstream status %d: %s", e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: upstream %s error: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
