package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

// ErrorKind classifies a generation failure
type ErrorKind string

const (
	KindMissingCredential     ErrorKind = "missing_credential"
	KindQuotaExceeded         ErrorKind = "quota_exceeded"
	KindConnectionError       ErrorKind = "connection_error"
	KindUnsupportedCapability ErrorKind = "unsupported_capability"
	KindMalformedResponse     ErrorKind = "malformed_response"
	KindProviderError         ErrorKind = "provider_error"
)

// Error is a classified failure with a user-facing message
type Error struct {
	Kind     ErrorKind
	Provider ProviderKind
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil && !strings.Contains(e.Message, e.Err.Error()) {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Provider == "" || t.Provider == e.Provider)
}

// Sentinels for errors.Is
var (
	ErrMissingCredential     = &Error{Kind: KindMissingCredential, Message: "missing credential"}
	ErrQuotaExceeded         = &Error{Kind: KindQuotaExceeded, Message: "quota exceeded"}
	ErrConnection            = &Error{Kind: KindConnectionError, Message: "connection error"}
	ErrUnsupportedCapability = &Error{Kind: KindUnsupportedCapability, Message: "unsupported capability"}
	ErrMalformedResponse     = &Error{Kind: KindMalformedResponse, Message: "malformed response"}
	ErrProvider              = &Error{Kind: KindProviderError, Message: "provider error"}
)

// NewError builds a classified error
func NewError(kind ErrorKind, provider ProviderKind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Provider: provider,
		Message:  fmt.Sprintf(format, args...),
		Err:      err,
	}
}

// KindOf returns the kind of a classified error, or provider_error for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProviderError
}

// errUndecodable marks a response body that arrived but could not be decoded
var errUndecodable = errors.New("undecodable response")

// isTransportError reports whether err comes from the network rather than the server
func isTransportError(err error) bool {
	if err == nil || errors.Is(err, errUndecodable) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "no such host", "i/o timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
