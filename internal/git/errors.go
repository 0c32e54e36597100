package git

import (
	"fmt"
	"strings"
)

// Typed git errors enabling structured classification without string parsing upstream.

type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err)
}
func (e *NotFoundError) Unwrap() error { return e.Err }

type NetworkTimeoutError struct {
	Op, URL string
	Err     error
}

func (e *NetworkTimeoutError) Error() string {
	return fmt.Sprintf("%s timed out for %s: %v", e.Op, e.URL, e.Err)
}
func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

type RateLimitError struct {
	Op, URL string
	Err     error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited for %s: %v", e.Op, e.URL, e.Err)
}
func (e *RateLimitError) Unwrap() error { return e.Err }

type RemoteDivergedError struct {
	Op, URL, Branch string
	Err             error
}

func (e *RemoteDivergedError) Error() string {
	return fmt.Sprintf("%s remote diverged %s@%s: %v", e.Op, e.URL, e.Branch, e.Err)
}
func (e *RemoteDivergedError) Unwrap() error { return e.Err }

// classifyRemoteError wraps remote-operation failures into typed variants
// based on the error text go-git produces.
func classifyRemoteError(op, url string, err error) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "authorization") ||
		strings.Contains(l, "invalid username or password") || strings.Contains(l, "invalid credentials"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return &RateLimitError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "timeout") || strings.Contains(l, "i/o timeout") ||
		strings.Contains(l, "deadline exceeded"):
		return &NetworkTimeoutError{Op: op, URL: url, Err: err}
	default:
		return fmt.Errorf("git %s failed for %s: %w", op, url, err)
	}
}

// isNonFastForward matches go-git's push rejection texts.
func isNonFastForward(err error) bool {
	if err == nil {
		return false
	}
	l := strings.ToLower(err.Error())
	return strings.Contains(l, "non-fast-forward") || strings.Contains(l, "fetch first") ||
		strings.Contains(l, "cannot lock ref")
}
