package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument marks request errors the caller can correct. The text
// wrapped alongside it is safe to return to the client.
var ErrInvalidArgument = errors.New("invalid argument")

// invalidArgf builds an ErrInvalidArgument carrying a client-facing message.
func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}

// ClientMessage returns the client-facing portion of an invalid-argument
// error.
func ClientMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ErrInvalidArgument.Error()+": ")
}
