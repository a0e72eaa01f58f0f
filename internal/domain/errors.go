package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on Code so errors.Is works against the constructor output.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes.
const (
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeUnknownAccount         = "UNKNOWN_ACCOUNT"
	CodeInvalidCredential      = "INVALID_CREDENTIAL"
	CodeTelemetryUnreachable   = "TELEMETRY_UNREACHABLE"
	CodeTelemetryRejected      = "TELEMETRY_REJECTED"
	CodeTelemetryMalformed     = "TELEMETRY_MALFORMED"
	CodePersistenceUnavailable = "PERSISTENCE_UNAVAILABLE"
)

// Authentication errors. These reach the caller.

func ErrAlreadyExists(username string) *AppError {
	return &AppError{Code: CodeAlreadyExists, Message: fmt.Sprintf("username %s already exists", username), Status: 409}
}

func ErrUnknownAccount() *AppError {
	return &AppError{Code: CodeUnknownAccount, Message: "username not found", Status: 401}
}

func ErrInvalidCredential(failedLogins int) *AppError {
	return &AppError{Code: CodeInvalidCredential, Message: fmt.Sprintf("wrong password, failed logins: %d", failedLogins), Status: 401}
}

// Side-channel errors. These are logged where they happen and never
// returned to the authentication path.

func ErrTelemetryUnreachable(cause error) *AppError {
	return &AppError{Code: CodeTelemetryUnreachable, Message: "detection service unreachable", Status: 502, Cause: cause}
}

func ErrTelemetryRejected(status int) *AppError {
	return &AppError{Code: CodeTelemetryRejected, Message: fmt.Sprintf("detection service returned %d", status), Status: 502}
}

func ErrTelemetryMalformed(cause error) *AppError {
	return &AppError{Code: CodeTelemetryMalformed, Message: "malformed verdict", Status: 502, Cause: cause}
}

func ErrPersistenceUnavailable(op string, cause error) *AppError {
	return &AppError{Code: CodePersistenceUnavailable, Message: op, Status: 503, Cause: cause}
}

// Generic constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: "RATE_LIMITED", Message: msg, Status: 429}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}
