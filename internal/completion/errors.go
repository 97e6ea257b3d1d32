package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
)

// Kind classifies why a completion failed.
type Kind string

const (
	KindConfig       Kind = "config"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
	KindBadRequest   Kind = "bad_request"
	KindProvider     Kind = "provider"
	KindTimeout      Kind = "timeout"
	KindNetwork      Kind = "network"
	KindMalformed    Kind = "malformed"
)

// responseDecodePrefix starts the SDK's error for a body it could not decode.
const responseDecodePrefix = "error parsing response json"

// Error keeps the provider failure detail for logging. Callers at the
// service boundary are expected to replace it with a generic error.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a completion error, or "" for other errors.
func KindOf(err error) Kind {
	var completionErr *Error
	if errors.As(err, &completionErr) {
		return completionErr.Kind
	}
	return ""
}

func classify(err error) *Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &Error{
			Kind:       kindForStatus(apiErr.StatusCode),
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), isResponseDecodeError(err):
		return &Error{Kind: KindMalformed, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Err: err}
	default:
		return &Error{Kind: KindNetwork, Err: err}
	}
}

func isResponseDecodeError(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		strings.Contains(err.Error(), responseDecodePrefix)
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= http.StatusInternalServerError:
		return KindProvider
	default:
		return KindBadRequest
	}
}
