package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a workflow failure into the buckets the controller
// reacts to when picking user copy and deciding whether retry is offered.
type ErrorKind string

const (
	KindPermissionDenied   ErrorKind = "permission_denied"
	KindUserCancelled      ErrorKind = "user_cancelled"
	KindDownload           ErrorKind = "download"
	KindAssetLoad          ErrorKind = "asset_load"
	KindInvalidReference   ErrorKind = "invalid_reference"
	KindNetworkUnreachable ErrorKind = "network_unreachable"
	KindTimeout            ErrorKind = "timeout"
	KindServerRejected     ErrorKind = "server_rejected"
	KindMalformedResponse  ErrorKind = "malformed_response"
)

// ClassifiedError carries a failure kind plus enough diagnostic detail to be
// replayed or shared by the user.
type ClassifiedError struct {
	Kind       ErrorKind
	Message    string
	HTTPStatus int
	// Detail carries raw server-provided text when available, shown verbatim
	// for server rejections.
	Detail string
	Err    error
}

func (e *ClassifiedError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.HTTPStatus, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// NewClassified builds a ClassifiedError with a formatted message.
func NewClassified(kind ErrorKind, format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Classify wraps err into a ClassifiedError of the given kind, passing an
// existing classification through untouched.
func Classify(kind ErrorKind, err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	return &ClassifiedError{Kind: kind, Message: err.Error(), Err: err}
}

// AsClassified extracts a ClassifiedError from err, if any.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified, true
	}

	return nil, false
}

// IsKind reports whether err is a ClassifiedError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	classified, ok := AsClassified(err)

	return ok && classified.Kind == kind
}

// Retryable reports whether re-issuing the same request could plausibly
// succeed. Used to decide whether a retry affordance is offered.
func (e *ClassifiedError) Retryable() bool {
	switch e.Kind {
	case KindNetworkUnreachable, KindTimeout, KindDownload, KindServerRejected:
		return true
	default:
		return false
	}
}

// UserMessage maps the classification to user-facing copy. A raw unclassified
// error never reaches the user without at least the generic fallback.
func (e *ClassifiedError) UserMessage() string {
	switch e.Kind {
	case KindPermissionDenied:
		return "Camera access is needed to take a photo. Grant permission and try again."
	case KindNetworkUnreachable:
		return "Could not reach the try-on service. Check your connection and retry."
	case KindTimeout:
		return "The try-on request took too long and was cancelled. Please retry."
	case KindServerRejected:
		if e.Detail != "" {
			return "The service rejected the request: " + e.Detail
		}

		return fmt.Sprintf("The service rejected the request (HTTP %d).", e.HTTPStatus)
	case KindDownload:
		return "The garment image could not be downloaded. Please retry."
	case KindAssetLoad, KindInvalidReference:
		return "The garment image could not be loaded."
	case KindMalformedResponse:
		return "The service returned an unexpected response. Please retry."
	default:
		return "Something went wrong. Please try again."
	}
}
