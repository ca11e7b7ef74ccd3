// SPDX-License-Identifier: MIT

// Package errs defines the gateway error taxonomy. Every failure that crosses
// a subsystem boundary is an *Error carrying one of the uppercase snake codes,
// so handlers can map it to an HTTP status and a JSON envelope without
// inspecting internals.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Input errors.
const (
	CodeInvalidURL          = "INVALID_URL"
	CodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"
	CodeMissingParameter    = "MISSING_PARAMETER"
	CodeInvalidHash         = "INVALID_HASH"
)

// Gating errors.
const (
	CodeForbidden           = "FORBIDDEN"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeUnauthorizedURL     = "UNAUTHORIZED_URL"
	CodeRateLimited         = "RATE_LIMITED"
	CodePlatformUnavailable = "PLATFORM_UNAVAILABLE_ON_DEPLOYMENT"
)

// Network errors.
const (
	CodeFetchFailed   = "FETCH_FAILED"
	CodeTimeout       = "TIMEOUT"
	CodeUpstreamError = "UPSTREAM_ERROR"
)

// Content errors.
const (
	CodePrivateContent = "PRIVATE_CONTENT"
	CodeLoginRequired  = "LOGIN_REQUIRED"
	CodeAgeRestricted  = "AGE_RESTRICTED"
	CodeDeletedContent = "DELETED_CONTENT"
	CodeStoryExpired   = "STORY_EXPIRED"
	CodeNoMediaFound   = "NO_MEDIA_FOUND"
)

// Delivery errors.
const (
	CodeConversionFailed   = "CONVERSION_FAILED"
	CodeMergeFailed        = "MERGE_FAILED"
	CodeDownloadFailed     = "DOWNLOAD_FAILED"
	CodeFFmpegNotAvailable = "FFMPEG_NOT_AVAILABLE"
	CodeUnsupportedFormat  = "UNSUPPORTED_FORMAT"
	CodeProxyFailed        = "PROXY_FAILED"
)

// Generic errors.
const (
	CodeExtractionFailed = "EXTRACTION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// Error is a coded gateway error.
type Error struct {
	Code    string
	Message string
	// UpstreamStatus carries the HTTP status of a failed upstream request,
	// when one applies.
	UpstreamStatus int
	cause          error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// E builds a coded error.
func E(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Ef builds a coded error with a formatted message.
func Ef(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields
// a plain coded error.
func Wrap(err error, code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Upstream builds an UPSTREAM_ERROR carrying the upstream HTTP status.
func Upstream(status int, message string) *Error {
	return &Error{Code: CodeUpstreamError, Message: message, UpstreamStatus: status}
}

// CodeOf returns the code of err, or CodeInternal for uncoded errors.
// Context cancellation and deadline expiry map to TIMEOUT.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeInternal
}

// MessageOf returns the human-readable message of err, falling back to the
// default message for its code.
func MessageOf(err error) string {
	var ge *Error
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return DefaultMessage(CodeOf(err))
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return CodeOf(err) == code
}

// UpstreamStatusOf returns the upstream HTTP status carried by err, or 0
// when err carries none.
func UpstreamStatusOf(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.UpstreamStatus
	}
	return 0
}

// HTTPStatus maps a code to the HTTP status the gateway answers with.
func HTTPStatus(code string) int {
	switch code {
	case CodeInvalidURL, CodeUnsupportedPlatform, CodeMissingParameter,
		CodePlatformUnavailable:
		return http.StatusBadRequest
	case CodeInvalidHash:
		// Well-formed but unknown hashes answer 404; malformed ones 400.
		// Handlers pick the variant; the default is 404.
		return http.StatusNotFound
	case CodeUnauthorized, CodeLoginRequired:
		return http.StatusUnauthorized
	case CodeForbidden, CodeUnauthorizedURL, CodePrivateContent, CodeAgeRestricted:
		return http.StatusForbidden
	case CodeDeletedContent, CodeNoMediaFound:
		return http.StatusNotFound
	case CodeStoryExpired:
		return http.StatusGone
	case CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeFFmpegNotAvailable:
		return http.StatusNotImplemented
	case CodeFetchFailed, CodeUpstreamError, CodeDownloadFailed, CodeProxyFailed,
		CodeConversionFailed, CodeMergeFailed:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DefaultMessage returns the stock human-readable message for a code.
func DefaultMessage(code string) string {
	switch code {
	case CodeInvalidURL:
		return "Invalid or missing URL"
	case CodeUnsupportedPlatform:
		return "This platform is not supported"
	case CodeMissingParameter:
		return "Required parameter is missing"
	case CodeInvalidHash:
		return "Unknown or expired media reference"
	case CodeForbidden:
		return "Access denied"
	case CodeUnauthorized:
		return "Authentication required"
	case CodeUnauthorizedURL:
		return "URL is not authorized for delivery"
	case CodeRateLimited:
		return "Too many requests, slow down"
	case CodePlatformUnavailable:
		return "This platform is not available on this deployment"
	case CodeFetchFailed:
		return "Failed to fetch from upstream"
	case CodeTimeout:
		return "Operation timed out"
	case CodeUpstreamError:
		return "Upstream returned an error"
	case CodePrivateContent:
		return "This content is private"
	case CodeLoginRequired:
		return "This content requires a login"
	case CodeAgeRestricted:
		return "This content is age-restricted"
	case CodeDeletedContent:
		return "This content has been deleted"
	case CodeStoryExpired:
		return "This story has expired"
	case CodeNoMediaFound:
		return "No downloadable media found"
	case CodeConversionFailed:
		return "Media conversion failed"
	case CodeMergeFailed:
		return "Merging video and audio failed"
	case CodeDownloadFailed:
		return "Download from upstream failed"
	case CodeFFmpegNotAvailable:
		return "Media conversion is not available on this server"
	case CodeUnsupportedFormat:
		return "Unsupported media format"
	case CodeProxyFailed:
		return "Proxying from upstream failed"
	case CodeExtractionFailed:
		return "Extraction failed"
	default:
		return "Internal server error"
	}
}
