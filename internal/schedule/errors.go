package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrInFlight is returned when a request arrives while another one is
	// still running. The request is dropped, not queued.
	ErrInFlight = errors.New("schedule request already in flight")
	// ErrStale means the group changed while the request was running; its
	// result was discarded.
	ErrStale = errors.New("schedule response is stale")

	ErrEmptyGroup      = errors.New("group is empty")
	ErrInvalidInterval = errors.New("invalid date interval")
	ErrGroupMismatch   = errors.New("group does not match the selected group")
	ErrNoGroup         = errors.New("no group selected")

	// ErrEmptyRange is the service's "no data" answer (HTTP 500). The
	// coordinator turns it into an empty, successful load.
	ErrEmptyRange = errors.New("no schedule data for range")

	ErrInvalidResponse = errors.New("invalid response")
	ErrNetworkFailure  = errors.New("network failure")
)

// FetchKind classifies a failed fetch.
type FetchKind int

const (
	InvalidResponse FetchKind = iota + 1
	NetworkFailure
)

func (k FetchKind) String() string {
	switch k {
	case InvalidResponse:
		return "invalid response"
	case NetworkFailure:
		return "network failure"
	default:
		return "unknown"
	}
}

// FetchError is returned by Client.Fetch for anything other than success or
// an empty range.
type FetchError struct {
	Kind   FetchKind
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInvalidResponse) and
// errors.Is(err, ErrNetworkFailure) match on the kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrInvalidResponse:
		return e.Kind == InvalidResponse
	case ErrNetworkFailure:
		return e.Kind == NetworkFailure
	}
	return false
}

func invalidResponse(status int, err error) error {
	return &FetchError{Kind: InvalidResponse, Status: status, Err: err}
}

func networkFailure(err error) error {
	return &FetchError{Kind: NetworkFailure, Err: err}
}

// UserMessage renders an error the way the UI shows it.
func UserMessage(err error) string {
	return "failed to load schedule: " + err.Error()
}
