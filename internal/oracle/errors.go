package oracle

import (
	"errors"
	"strings"

	"google.golang.org/genai"
)

// ErrorKind categorizes classifier failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindInvalidKey indicates the API key is invalid, revoked or lacks
	// permissions.
	KindInvalidKey
	// KindQuota indicates the API quota has been exceeded or the caller is
	// rate limited.
	KindQuota
	// KindNetwork indicates a connectivity problem or upstream server error.
	KindNetwork
	// KindEmpty indicates the model returned no text.
	KindEmpty
	// KindMalformed indicates the model's answer could not be parsed.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidKey:
		return "invalid_key"
	case KindQuota:
		return "quota"
	case KindNetwork:
		return "network"
	case KindEmpty:
		return "empty"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a classified classifier failure.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Message
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a classified error, or KindUnknown.
func KindOf(err error) ErrorKind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnknown
}

// classify wraps a Gemini call error with its kind.
func classify(op string, err error) *Error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(op, apiErr)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		return &Error{Kind: KindInvalidKey, Op: op, Message: "API key is invalid or has been revoked", Err: err}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		return &Error{Kind: KindQuota, Op: op, Message: "API quota exceeded or rate limited", Err: err}

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "deadline exceeded") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		return &Error{Kind: KindNetwork, Op: op, Message: "network error", Err: err}

	default:
		return &Error{Kind: KindUnknown, Op: op, Message: "request failed", Err: err}
	}
}

func classifyAPIError(op string, err *genai.APIError) *Error {
	switch err.Code {
	case 400:
		return &Error{Kind: KindInvalidKey, Op: op, Message: "bad request, API key may be malformed", Err: err}
	case 401, 403:
		return &Error{Kind: KindInvalidKey, Op: op, Message: "API key is invalid, expired, or lacks permissions", Err: err}
	case 429:
		return &Error{Kind: KindQuota, Op: op, Message: "API rate limit exceeded", Err: err}
	case 500, 502, 503, 504:
		return &Error{Kind: KindNetwork, Op: op, Message: "Gemini API server error", Err: err}
	default:
		return &Error{Kind: KindUnknown, Op: op, Message: err.Message, Err: err}
	}
}
