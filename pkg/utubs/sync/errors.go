package sync

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Caller bugs. These indicate the engine was asked to do something that
// cannot be true of the active UTub.
var (
	ErrInvalidTagReference = errors.New("tag is not part of the active utub")
	ErrInvalidURLReference = errors.New("url is not part of the active utub")
	ErrOrphanTagReference  = errors.New("url references a tag missing from the utub")
	ErrNoActiveUTub        = errors.New("no utub is active")
	ErrUTubMismatch        = errors.New("snapshot belongs to a different utub")
)

// Coordination errors.
var (
	ErrAlreadyInFlight = errors.New("a mutation for this entity is already in flight")
	ErrStaleEpoch      = errors.New("response belongs to a previous utub selection")
)

// Outcome taxonomy. Only the Coordinator produces these.
var (
	ErrStaleConflict    = errors.New("entity was changed by another member")
	ErrNotFoundConflict = errors.New("entity was deleted by another member")
	ErrAuthFault        = errors.New("session or permission failure")
	ErrTransportFault   = errors.New("server could not be reached")
	ErrServerFault      = errors.New("server returned an unexpected response")
	ErrDuplicate        = errors.New("value already exists in the utub")
)

// ValidationError carries field-scoped messages from a 400/403 response.
type ValidationError struct {
	Message     string
	FieldErrors map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.FieldErrors) == 0 {
		return e.Message
	}
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e.FieldErrors[f], ", "))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

// StatusError is what a Remote returns for a non-2xx response.
type StatusError struct {
	StatusCode  int
	ContentType string
	Message     string
	FieldErrors map[string][]string
	// Details is the decoded "details" object of a JSON error body, if any.
	Details map[string]any
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsJSON reports whether the response body was JSON.
func (e *StatusError) IsJSON() bool {
	return strings.Contains(e.ContentType, "json")
}

// DetailString returns a string entry of Details.
func (e *StatusError) DetailString(key string) (string, bool) {
	v, ok := e.Details[key].(string)
	return v, ok && v != ""
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
