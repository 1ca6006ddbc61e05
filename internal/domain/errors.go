package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is implemented by errors that map to an HTTP status code
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors, match with errors.Is
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream unavailable")
	ErrStorage      = errors.New("storage failure")
)

// ValidationError reports a malformed or missing request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) StatusCode() int      { return http.StatusBadRequest }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ErrEmptyMessage is returned when a chat message is blank
var ErrEmptyMessage = &ValidationError{Field: "message", Message: "must not be empty"}

// AuthReason tells why authentication failed
type AuthReason string

const (
	AuthMissingToken       AuthReason = "missing token"
	AuthInvalidToken       AuthReason = "invalid or expired token"
	AuthInvalidCredentials AuthReason = "invalid credentials"
)

// AuthError reports a missing, invalid or expired credential
type AuthError struct {
	Reason AuthReason
	Err    error
}

func (e *AuthError) Error() string        { return string(e.Reason) }
func (e *AuthError) Unwrap() error        { return e.Err }
func (e *AuthError) StatusCode() int      { return http.StatusUnauthorized }
func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

// NotFoundError reports an absent resource. Resources owned by someone else
// are reported the same way.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string        { return e.Resource + " not found" }
func (e *NotFoundError) StatusCode() int      { return http.StatusNotFound }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UpstreamReason tells which upstream collaborator failed
type UpstreamReason string

const UpstreamLLMUnavailable UpstreamReason = "language model unavailable"

// UpstreamError reports a failed call to an external provider
type UpstreamError struct {
	Reason UpstreamReason
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *UpstreamError) Unwrap() error        { return e.Err }
func (e *UpstreamError) StatusCode() int      { return http.StatusInternalServerError }
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// StorageError reports a persistence failure
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error        { return e.Err }
func (e *StorageError) StatusCode() int      { return http.StatusInternalServerError }
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// PublicMessage returns the message that is safe to show to API clients.
// Internal details of upstream and storage failures are not exposed.
func PublicMessage(err error) string {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return string(upstream.Reason)
	}
	var storage *StorageError
	if errors.As(err, &storage) {
		return "failed to " + storage.Op
	}
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Error()
	}
	return "internal server error"
}
