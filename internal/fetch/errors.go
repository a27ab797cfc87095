package fetch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimeout                = errors.New("request timed out")
	ErrForbidden              = errors.New("access forbidden")
	ErrNotFound               = errors.New("page not found")
	ErrAllTransportsExhausted = errors.New("all transports exhausted")
	ErrEmptyBody              = errors.New("empty response body")
	ErrBodyTooLarge           = errors.New("response body too large")
	ErrBlocked                = errors.New("bot wall detected")
)

// Attempt records the outcome of one transport.
type Attempt struct {
	Transport string
	Status    int
	Err       error
}

func (a Attempt) timedOut() bool {
	return errors.Is(a.Err, ErrTimeout)
}

func (a Attempt) forbidden() bool {
	return a.Status == 403 || errors.Is(a.Err, ErrBlocked)
}

// Error is returned when no transport produced a usable page.
// errors.Is matches Kind and, when Exhausted is set, ErrAllTransportsExhausted.
type Error struct {
	URL       string
	Kind      error
	Exhausted bool
	Attempts  []Attempt
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		switch {
		case a.Err != nil && a.Status != 0:
			parts = append(parts, fmt.Sprintf("%s: status %d: %v", a.Transport, a.Status, a.Err))
		case a.Err != nil:
			parts = append(parts, fmt.Sprintf("%s: %v", a.Transport, a.Err))
		default:
			parts = append(parts, fmt.Sprintf("%s: status %d", a.Transport, a.Status))
		}
	}

	return fmt.Sprintf("fetch %s: %v after %d attempt(s) [%s]", e.URL, e.Kind, len(e.Attempts), strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func (e *Error) Is(target error) bool {
	return e.Exhausted && target == ErrAllTransportsExhausted
}

// classify picks the error kind for a fully failed attempt chain.
func classify(attempts []Attempt) error {
	if len(attempts) == 0 {
		return ErrAllTransportsExhausted
	}

	allTimedOut := true
	anyForbidden := false
	for _, a := range attempts {
		if !a.timedOut() {
			allTimedOut = false
		}
		if a.forbidden() {
			anyForbidden = true
		}
	}

	switch {
	case allTimedOut:
		return ErrTimeout
	case anyForbidden:
		return ErrForbidden
	default:
		return ErrAllTransportsExhausted
	}
}
