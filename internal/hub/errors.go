package hub

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrEntityNotFound  = errors.New("entity not found")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrInvalidData     = errors.New("invalid data")
	ErrNoActionHandler = errors.New("no device action handler")
)

// Error is a failure meant to be shown to whoever triggered the call.
type Error struct {
	Msg string
	Err error
}

// Errorf builds a user-facing error wrapping err (which may be nil).
func Errorf(err error, format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Context links a state change or service call to what caused it.
type Context struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// NewContext returns a context with a fresh ID.
func NewContext() *Context {
	return &Context{ID: uuid.NewString()}
}

// Child returns a new context whose parent is c.
func (c *Context) Child() *Context {
	child := NewContext()
	if c != nil {
		child.ParentID = c.ID
		child.UserID = c.UserID
	}
	return child
}
