package shuffleprover

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Error kinds of the worker. Every error returned by the packages of this
// module can be compared against one of them with xerrors.Is.
var (
	// ErrFrame is returned when the length prefix of a task exceeds the
	// buffer or the segment bounds are malformed.
	ErrFrame = xerrors.New("frame error")
	// ErrDecoding is returned when a segment does not match the expected
	// token schema.
	ErrDecoding = xerrors.New("decoding error")
	// ErrDeckLength is returned when the card tokens cannot form a deck.
	ErrDeckLength = xerrors.New("deck length error")
	// ErrKeyDeserialization is returned when the joint key bytes are not a
	// valid point.
	ErrKeyDeserialization = xerrors.New("key deserialization error")
	// ErrProving is returned for any failure of the proof system.
	ErrProving = xerrors.New("proving error")
	// ErrNetwork is returned on transport failures and non-success
	// HTTP statuses.
	ErrNetwork = xerrors.New("network error")
	// ErrPayload is returned when a fetched task body is unusable.
	ErrPayload = xerrors.New("payload error")
)

// Error is a wrapper around an standard error that carries the kind of the
// failure and allows to print the stack trace from the call of the
// constructor.
type Error struct {
	kind  error
	err   error
	msg   string
	frame xerrors.Frame
}

// NewError returns an error of the given kind wrapping err. The stack trace
// begins at the call of the function.
func NewError(kind, err error, msg string) error {
	return newErrorSkip(kind, err, msg, 2)
}

// Errorf returns an error of the given kind with a formatted message and
// no further cause.
func Errorf(kind error, format string, args ...interface{}) error {
	return newErrorSkip(kind, nil, fmt.Sprintf(format, args...), 2)
}

// ErrorOrNil returns nil if err is nil, or the error wrapped with the
// given kind otherwise.
func ErrorOrNil(kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return newErrorSkip(kind, err, msg, 2)
}

func newErrorSkip(kind, err error, msg string, skip int) error {
	return &Error{
		kind:  kind,
		err:   err,
		msg:   msg,
		frame: xerrors.Caller(skip),
	}
}

// Kind returns the sentinel error of the failure.
func (e *Error) Kind() error {
	return e.kind
}

func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.err != nil:
		return fmt.Sprintf("%v: %s: %v", e.kind, e.msg, e.err)
	case e.msg != "":
		return fmt.Sprintf("%v: %s", e.kind, e.msg)
	case e.err != nil:
		return fmt.Sprintf("%v: %v", e.kind, e.err)
	}
	return fmt.Sprintf("%v", e.kind)
}

// Is makes the error comparable to its kind.
func (e *Error) Is(target error) bool {
	return target == e.kind
}

// Unwrap returns the next error in the chain.
func (e *Error) Unwrap() error {
	return e.err
}

// Format prints the error to the formatter.
func (e *Error) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

// FormatError prints the error to the printer. It prints the kind and the
// message, and the stack trace when the '+' is used in combination with
// 'v'. The cause is returned so that it is printed once, after them.
func (e *Error) FormatError(p xerrors.Printer) error {
	if e.msg != "" {
		p.Printf("%v: %s", e.kind, e.msg)
	} else {
		p.Printf("%v", e.kind)
	}

	if p.Detail() {
		e.frame.Format(p)
	}
	return e.err
}
