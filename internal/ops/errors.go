package ops

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v81/github"
)

// ErrorKind classifies an operation failure. The kind decides whether the
// engine retries: only Transient failures are retried.
type ErrorKind string

const (
	// KindTransient covers network failures, 5xx responses and rate-limit
	// signals; the same call is expected to succeed if retried.
	KindTransient ErrorKind = "transient"
	// KindNotFound means the repository (or addressed resource) is missing
	// or inaccessible.
	KindNotFound ErrorKind = "not_found"
	// KindPermission means the token lacks the required scope.
	KindPermission ErrorKind = "permission"
	// KindConflict means remote state already diverged from what the
	// operation expected.
	KindConflict ErrorKind = "conflict"
	// KindInvalid means the request itself is malformed; retrying cannot
	// help.
	KindInvalid ErrorKind = "invalid"
	// KindCancelled is engine-level: the run was cancelled.
	KindCancelled ErrorKind = "cancelled"
	// KindRateExhausted is engine-level: the remote signalled a hard stop
	// with no usable reset time.
	KindRateExhausted ErrorKind = "rate_exhausted"
)

// OpError is a classified operation failure.
type OpError struct {
	Kind ErrorKind
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Errorf builds a classified failure in one line.
func Errorf(kind ErrorKind, format string, args ...any) *OpError {
	return &OpError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of an error, classifying unclassified errors on
// the fly.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return Classify(err)
}

// Classify maps errors from the GitHub transport onto the error taxonomy:
//
//	network error, 5xx, 403 with rate-limit signal -> Transient
//	404                                            -> NotFound
//	401, 403 without rate-limit signal             -> Permission
//	409, 422                                       -> Conflict
//	400 (and other 4xx)                            -> Invalid
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return KindTransient
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return KindTransient
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		status := 0
		if ghErr.Response != nil {
			status = ghErr.Response.StatusCode
		}
		switch {
		case status == http.StatusNotFound:
			return KindNotFound
		case status == http.StatusUnauthorized:
			return KindPermission
		case status == http.StatusForbidden:
			if hasRateLimitSignal(ghErr) {
				return KindTransient
			}
			return KindPermission
		case status == http.StatusConflict, status == http.StatusUnprocessableEntity:
			return KindConflict
		case status >= 500:
			return KindTransient
		case status >= 400:
			return KindInvalid
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindTransient
	}

	// Unknown failure between us and the API; assume it may clear.
	return KindTransient
}

func hasRateLimitSignal(e *github.ErrorResponse) bool {
	if e.Response != nil {
		if e.Response.Header.Get("Retry-After") != "" {
			return true
		}
		if e.Response.Header.Get("X-RateLimit-Remaining") == "0" {
			return true
		}
	}
	return strings.Contains(strings.ToLower(e.Message), "rate limit")
}
