package shared

import "fmt"

// DomainError is an error with a stable machine-readable code. Two domain
// errors match under errors.Is when their codes are equal, so a detailed
// error built with Newf still matches the package sentinel for its code.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// Newf returns a copy of e with a formatted message
func (e *DomainError) Newf(format string, args ...any) *DomainError {
	return &DomainError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// ErrNotFound is returned by repositories when a row does not exist
var ErrNotFound = NewDomainError("NOT_FOUND", "Resource not found")
