package pkg

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/hatchlab/hatchdesk/models"
)

// JSON writes v as the {data} envelope.
func JSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, models.ItemResponse[any]{Data: v})
}

// List writes items as the {data, pagination} envelope. A nil slice is
// written as [] so clients never see "data": null.
func List[T any](w http.ResponseWriter, items []T, pagination models.Pagination) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, models.ListResponse[T]{Data: items, Pagination: pagination})
}

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response. Domain errors map to their status and code;
// anything else becomes a 500 whose message is not leaked to the client.
func Error(w http.ResponseWriter, err error) {
	status, code := mapError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[http] internal error: %v", err)
		message = "internal server error"
	}

	writeJSON(w, status, models.ErrorResponse{Code: code, Message: message})
}

// ErrorWithMessage writes an error response with an explicit status and code.
func ErrorWithMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.ErrorResponse{Code: code, Message: message})
}

// ErrorWithDetails is ErrorWithMessage with a details object, used for
// validation failures that name the offending field.
func ErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, models.ErrorResponse{Code: code, Message: message, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] failed to encode response: %v", err)
	}
}

// mapError walks the error chain with errors.Is so wrapped sentinels still
// match.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, CodeRateLimited
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
