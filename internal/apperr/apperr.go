// Package apperr implements the typed error kinds of spec.md §7
// (NotFound, UnprocessableContent, Conflict, Forbidden, DatabaseError,
// BadRequest), modeled on the teacher's Lens/modules/core/pkg/errors
// Error{Code,Message,InnerError,Stack} type crossed with the
// apiserver's commonerrors.NewBadRequest/PrimusApiError HTTP mapping.
package apperr

import (
	"fmt"
	"net/http"
	"runtime"

	pkgerrors "github.com/pkg/errors"
)

// Code identifies one of the documented error kinds.
type Code string

const (
	CodeNotFound              Code = "NOT_FOUND"
	CodeUnprocessableContent  Code = "UNPROCESSABLE_CONTENT"
	CodeConflict              Code = "CONFLICT"
	CodeForbidden             Code = "FORBIDDEN"
	CodeDatabaseError         Code = "DATABASE_ERROR"
	CodeBadRequest            Code = "BAD_REQUEST"
	CodeInternal              Code = "INTERNAL_ERROR"
)

// Error is the typed error carried across every component boundary.
// Field and Value are populated for validation errors where they add
// value to the client (spec.md §7 "User-visible").
type Error struct {
	Code       Code
	Message    string
	Field      string
	Value      interface{}
	InnerError error
	Stack      []runtime.Frame
}

func capture() []runtime.Frame {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]runtime.Frame, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, f)
		if !more {
			break
		}
	}
	return out
}

func (e *Error) Error() string {
	if e.InnerError != nil {
		return fmt.Sprintf("code %s message %s error %s", e.Code, e.Message, e.InnerError.Error())
	}
	return fmt.Sprintf("code %s message %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.InnerError
}

// GetTopStackString returns the top frame of the captured stack, or
// the empty string if none was captured.
func (e *Error) GetTopStackString() string {
	if len(e.Stack) == 0 {
		return ""
	}
	f := e.Stack[0]
	return fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Function)
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Stack: capture()}
}

func Wrap(code Code, inner error, message string) *Error {
	return &Error{Code: code, Message: message, InnerError: pkgerrors.WithStack(inner), Stack: capture()}
}

func NewNotFound(message string) *Error {
	return New(CodeNotFound, message)
}

func NewUnprocessableContent(message string) *Error {
	return New(CodeUnprocessableContent, message)
}

func NewUnprocessableField(message, field string, value interface{}) *Error {
	e := New(CodeUnprocessableContent, message)
	e.Field = field
	e.Value = value
	return e
}

func NewConflict(message string) *Error {
	return New(CodeConflict, message)
}

func NewForbidden(message string) *Error {
	return New(CodeForbidden, message)
}

func NewBadRequest(message string) *Error {
	return New(CodeBadRequest, message)
}

func NewDatabaseError(inner error) *Error {
	return Wrap(CodeDatabaseError, inner, "database operation failed")
}

// HTTPStatus maps an error kind to its documented HTTP status code.
// Errors not produced by this package map to 500.
func HTTPStatus(err error) int {
	var e *Error
	if as(err, &e) {
		switch e.Code {
		case CodeNotFound:
			return http.StatusNotFound
		case CodeUnprocessableContent:
			return http.StatusUnprocessableEntity
		case CodeConflict:
			return http.StatusConflict
		case CodeForbidden:
			return http.StatusForbidden
		case CodeBadRequest:
			return http.StatusBadRequest
		case CodeDatabaseError, CodeInternal:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// as is a small local errors.As to avoid importing the stdlib errors
// package; it is used by HTTPStatus, IsNotFound and IsConflict.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsNotFound reports whether err is a NotFound apperr.Error.
func IsNotFound(err error) bool {
	var e *Error
	return as(err, &e) && e.Code == CodeNotFound
}

// IsConflict reports whether err is a Conflict apperr.Error.
func IsConflict(err error) bool {
	var e *Error
	return as(err, &e) && e.Code == CodeConflict
}
