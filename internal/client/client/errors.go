package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")

	// ErrSessionExpired wraps every failure of the token refresh exchange.
	// Requests rejected because of it cannot succeed without a new login.
	ErrSessionExpired = errors.New("session expired")
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// ErrorKind tells how far a failed request got.
type ErrorKind int

const (
	// KindResponse: the server answered with an error status.
	KindResponse ErrorKind = iota + 1
	// KindNoResponse: the request was sent but nothing usable came back
	// (connection failure, timeout).
	KindNoResponse
	// KindRequest: the request could not be built or sent at all.
	KindRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindNoResponse:
		return "no_response"
	case KindRequest:
		return "request"
	}
	return "unknown"
}

const (
	msgDefault = "An error occurred"
	msgNetwork = "Network error - please check your connection"
	msgRequest = "An unexpected error occurred"
)

// APIError is the normalized form of every failed call. StatusCode is 0
// unless Kind is KindResponse.
type APIError struct {
	Message    string
	StatusCode int
	ErrorCode  string
	Validation map[string][]string
	Kind       ErrorKind
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

// Is maps the error onto the package sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindNoResponse
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrValidation:
		return e.StatusCode == http.StatusUnprocessableEntity || len(e.Validation) > 0
	}
	return false
}

// Retryable reports whether repeating the call may help: the server was
// unreachable or failed on its side. Client errors (4xx) never are.
func (e *APIError) Retryable() bool {
	return e.Kind == KindNoResponse || (e.Kind == KindResponse && e.StatusCode >= 500)
}

// FirstValidationMessage returns one field message, picking the
// alphabetically first field so the result is stable.
func (e *APIError) FirstValidationMessage() (field, message string, ok bool) {
	fields := make([]string, 0, len(e.Validation))
	for f, msgs := range e.Validation {
		if len(msgs) > 0 {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return "", "", false
	}
	sort.Strings(fields)
	return fields[0], e.Validation[fields[0]][0], true
}

type errorBody struct {
	Message    string              `json:"message"`
	Error      string              `json:"error"`
	Validation map[string][]string `json:"validation"`
}

func newResponseError(status int, body []byte) *APIError {
	e := &APIError{Message: msgDefault, StatusCode: status, Kind: KindResponse}
	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		if eb.Message != "" {
			e.Message = eb.Message
		}
		e.ErrorCode = eb.Error
		e.Validation = eb.Validation
	}
	return e
}

func newNoResponseError(err error) *APIError {
	return &APIError{Message: msgNetwork, Kind: KindNoResponse, Err: err}
}

func newRequestError(err error) *APIError {
	msg := msgRequest
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &APIError{Message: msg, Kind: KindRequest, Err: err}
}

// AsAPIError unwraps err to an *APIError when there is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
