// Package pkg holds helpers shared by the server layers.
// This file defines the domain-level errors.
//
// Services wrap these sentinels with context:
//
//	return fmt.Errorf("%w: conversation %d", pkg.ErrNotFound, id)
//
// and handlers map them back with errors.Is, so the wrapped message never
// has to be parsed.
package pkg

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrRateLimited   = errors.New("rate limited")
	ErrInternal      = errors.New("internal error")
)

// Error codes carried in the "code" field of error responses.
const (
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeConflict     = "conflict"
	CodeBadRequest   = "bad_request"
	CodeRateLimited  = "rate_limited"
	CodeCSRF         = "csrf_invalid"
	CodeInternal     = "internal"
)
