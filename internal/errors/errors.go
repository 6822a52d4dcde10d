package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError is the application error envelope. UserMessage is safe to echo to
// the chat; Message is for logs only.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// NewValidationError covers ledger invariant violations: missing transaction
// source, non-positive amounts, disallowed same-party transfers.
func NewValidationError(userMsg string, cause error) *AppError {
	msg := userMsg
	if cause != nil {
		msg = cause.Error()
	}

	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: userMsg,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       cause,
	}
}

// NewParseError covers malformed command syntax or unparsable amounts.
func NewParseError(userMsg string) *AppError {
	return &AppError{
		Code:        "E110",
		Message:     fmt.Sprintf("parse error: %s", userMsg),
		UserMessage: userMsg,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewNotFoundError covers unknown usernames and request identifiers.
func NewNotFoundError(userMsg string) *AppError {
	return &AppError{
		Code:        "E120",
		Message:     fmt.Sprintf("not found: %s", userMsg),
		UserMessage: userMsg,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewAuthorizationError covers callbacks answered by someone other than the
// addressed user. The user-facing message stays generic on purpose.
func NewAuthorizationError(detail string) *AppError {
	return &AppError{
		Code:        "E130",
		Message:     fmt.Sprintf("authorization: %s", detail),
		UserMessage: "Sorry, this is not for you.",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

// NewDatabaseError wraps storage failures.
func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("database error: %s", underlyingMsg),
		UserMessage: "A temporary problem occurred, please try again later.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewTransportError wraps failures of the Telegram API.
func NewTransportError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E300",
		Message:     fmt.Sprintf("telegram transport error: %s", underlyingMsg),
		UserMessage: "The messenger is temporarily unavailable.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewRateLimitError is returned when a user exceeds the update budget.
func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        "E500",
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}
