package transport

import (
	"fmt"

	"github.com/pkg/errors"
)

// TransportError reports a failed read, write, dial or close on the
// connection to the server. It is always fatal to the session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newTransportError(op string, err error) error {
	return errors.WithStack(&TransportError{Op: op, Err: err})
}

// ProtocolError reports a server message that does not fit the grammar
// expected in the current state of the conversation.
type ProtocolError struct {
	State string
	Want  string
	Got   string
}

func (e *ProtocolError) Error() string {
	if e.Want == "" {
		return fmt.Sprintf("protocol violation in %s: unexpected %q", e.State, e.Got)
	}
	return fmt.Sprintf("protocol violation in %s: want %s, got %q", e.State, e.Want, e.Got)
}

// NewProtocolError builds a ProtocolError carrying a stack trace.
func NewProtocolError(state, want, got string) error {
	return errors.WithStack(&ProtocolError{State: state, Want: want, Got: got})
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
