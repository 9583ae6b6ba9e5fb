package services

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a workflow failure.
type Kind string

const (
	KindNetwork             Kind = "network"
	KindServer              Kind = "server"
	KindMalformedResponse   Kind = "malformed_response"
	KindPrecondition        Kind = "precondition"
	KindConcurrentOperation Kind = "concurrent_operation"
	KindStaleResult         Kind = "stale_result"
	KindStorage             Kind = "storage"
)

var (
	ErrNetwork             = errors.New("network error")
	ErrServer              = errors.New("server error")
	ErrMalformedResponse   = errors.New("malformed response")
	ErrPrecondition        = errors.New("precondition failed")
	ErrConcurrentOperation = errors.New("operation already in flight")
	ErrStaleResult         = errors.New("stale result")
	ErrStorage             = errors.New("storage error")
)

var kindMarkers = map[Kind]error{
	KindNetwork:             ErrNetwork,
	KindServer:              ErrServer,
	KindMalformedResponse:   ErrMalformedResponse,
	KindPrecondition:        ErrPrecondition,
	KindConcurrentOperation: ErrConcurrentOperation,
	KindStaleResult:         ErrStaleResult,
	KindStorage:             ErrStorage,
}

// ParseKind converts a wire value into a known Kind.
func ParseKind(value string) (Kind, bool) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	_, ok := kindMarkers[kind]
	return kind, ok
}

// Error is the typed failure shared by the transport client and the
// orchestrator. errors.Is matches both the kind marker and the cause.
type Error struct {
	Kind       Kind
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	marker := markerFor(e.Kind)
	detail := buildDetail(e.Operation, e.Message)
	if e.StatusCode > 0 {
		detail = fmt.Sprintf("%s (status %d)", detail, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", marker, detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", marker, detail)
}

func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := []error{markerFor(e.Kind)}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// ErrorKind reports the classification as a plain string.
func (e *Error) ErrorKind() string {
	if e == nil {
		return ""
	}
	return string(e.Kind)
}

// Wrap builds a typed error for operation, tagging it with kind so callers can
// classify it later with errors.Is or KindOf.
func Wrap(kind Kind, operation, message string, err error) error {
	if _, ok := kindMarkers[kind]; !ok {
		kind = KindNetwork
	}
	return &Error{
		Kind:      kind,
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// ServerError reports a reachable backend that rejected the request.
func ServerError(operation string, statusCode int, message string) error {
	return &Error{
		Kind:       KindServer,
		Operation:  strings.TrimSpace(operation),
		StatusCode: statusCode,
		Message:    strings.TrimSpace(message),
	}
}

// KindOf extracts the classification of err. Untyped errors report false.
func KindOf(err error) (Kind, bool) {
	var typed *Error
	if errors.As(err, &typed) && typed != nil {
		return typed.Kind, true
	}
	return "", false
}

// StatusCodeOf returns the backend HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var typed *Error
	if errors.As(err, &typed) && typed != nil {
		return typed.StatusCode
	}
	return 0
}

// MessageOf returns the human message of a typed error, falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) && typed != nil {
		parts := make([]string, 0, 2)
		if typed.Message != "" {
			parts = append(parts, typed.Message)
		}
		if typed.Err != nil {
			parts = append(parts, typed.Err.Error())
		}
		if typed.StatusCode > 0 {
			parts = append(parts, fmt.Sprintf("status %d", typed.StatusCode))
		}
		if len(parts) > 0 {
			return strings.Join(parts, ": ")
		}
		return markerFor(typed.Kind).Error()
	}
	return err.Error()
}

func markerFor(kind Kind) error {
	if marker, ok := kindMarkers[kind]; ok {
		return marker
	}
	return ErrNetwork
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
