package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAuthentication  = errors.New("authentication failed")
	ErrChannelClosed   = errors.New("channel closed by remote")
	ErrTimeoutExceeded = errors.New("timeout exceeded waiting for command completion")
	ErrInvalidState    = errors.New("session is not in a usable state")
	ErrSessionClosed   = errors.New("session is closed")
)

// AuthenticationError wraps whatever the transport reported while logging in.
type AuthenticationError struct {
	Host string
	Err  error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("login to %s failed: %s", e.Host, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// TimeoutError is returned when a command's deadline passed before its detector fired.
// Partial holds whatever the device had sent by then.
type TimeoutError struct {
	Command string
	After   time.Duration
	Partial string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %q: no completion after %s", e.Command, e.After.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeoutExceeded }
