package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP translator.
type Kind int

const (
	// Validation covers malformed or missing input detected before any
	// store was touched.
	Validation Kind = iota
	// NotAuthorized covers a missing or invalid principal.
	NotAuthorized
	// NotFound covers a lookup that matched nothing in either store.
	NotFound
	// CacheUnavailable covers a volatile store failure. The mutation is
	// aborted before broadcast or enqueue; the cache write is the commit
	// point.
	CacheUnavailable
	// Internal covers everything else.
	Internal
)

// Error carries a kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf reports the kind of err, defaulting to Internal for plain errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

func status(kind Kind) int {
	switch kind {
	case Validation:
		return http.StatusBadRequest
	case NotAuthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case CacheUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON translates err into an HTTP status plus {"error": ...} body.
// It is the single point where error kinds become client responses.
func WriteJSON(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	msg := "internal server error"
	var ae *Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status(kind))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
