package app

import "fmt"

// DomainError is an error with an HTTP status and a stable machine-readable
// code. mapError passes these through verbatim, so handlers and the service
// layer use them for every failure a client is expected to branch on
// (validation, the argument cap, judge availability).
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
