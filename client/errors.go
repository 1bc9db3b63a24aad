package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hatchlab/hatchdesk/models"
)

// APIError is a non-2xx response decoded from the {code, message, details}
// error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// Kind groups errors by how a view should react to them.
type Kind int

const (
	// KindNone is the kind of a nil error.
	KindNone Kind = iota
	// KindCanceled is a canceled or timed-out request. It is not shown.
	KindCanceled
	// KindAuth is a 401 that survived the silent refresh and retry.
	KindAuth
	// KindDomain is an API error with a code the UI can explain, such as not_found.
	KindDomain
	// KindUnknown is everything else: network failures, 5xx, bad payloads.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCanceled:
		return "canceled"
	case KindAuth:
		return "auth"
	case KindDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// Classify maps err onto the error taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return KindAuth
		case apiErr.Status >= 500:
			return KindUnknown
		case apiErr.Code != "":
			return KindDomain
		}
	}
	return KindUnknown
}

// IsRetryable reports whether a query may retry err on its own. Only
// unknown failures qualify; business errors and auth failures never do.
func IsRetryable(err error) bool {
	return Classify(err) == KindUnknown
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// decodeError builds an APIError from a failed response. A body that is not
// the error envelope still yields an APIError carrying the status text.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{Status: resp.StatusCode}
	var env models.ErrorResponse
	if err := json.Unmarshal(body, &env); err == nil && (env.Code != "" || env.Message != "") {
		apiErr.Code = env.Code
		apiErr.Message = env.Message
		apiErr.Details = env.Details
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
