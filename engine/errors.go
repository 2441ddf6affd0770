package engine

import "fmt"

// Error codes carried in directed ERROR frames. Clients branch on Code or
// Tag; Message is for humans.
const (
	CodeValidation    = 400
	CodeAuthorization = 403
	CodeNotFound      = 404
	CodeState         = 409
	CodeInternal      = 500
)

const (
	TagValidation    = "VALIDATION_ERROR"
	TagAuthorization = "AUTHORIZATION_ERROR"
	TagNotFound      = "NOT_FOUND"
	TagState         = "STATE_ERROR"
	TagInternal      = "INTERNAL_ERROR"
)

// Error is the engine's error taxonomy. Every failed transition returns one
// of these; the hub converts it into a frame for the submitting connection
// and nothing else.
type Error struct {
	Code    int
	Tag     string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Tag, e.Message)
}

func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Tag: TagValidation, Message: fmt.Sprintf(format, args...)}
}

func NewAuthorizationError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeAuthorization, Tag: TagAuthorization, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeNotFound, Tag: TagNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewStateError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeState, Tag: TagState, Message: fmt.Sprintf(format, args...)}
}

func NewInternalError() *Error {
	return &Error{Code: CodeInternal, Tag: TagInternal, Message: "internal error"}
}

// AsError normalizes any error into the taxonomy. Unexpected errors map to a
// generic internal error so no detail leaks to the client.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return NewInternalError()
}
