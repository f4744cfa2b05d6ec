// Package detect decides when the response to a command has finished arriving.
//
// A Detector is a policy value. The session evaluates it again on every poll of a single
// command, handing it that command's buffer and the time elapsed since the command was
// written. Nothing carries over from one command to the next.
package detect

import (
	"time"

	"github.com/morganhein/netsync/stream"
)

const (
	// DefaultDelay is the FixedDelay wait for ordinary commands.
	DefaultDelay = 5 * time.Second
	// LoginDelay is the FixedDelay wait for short login-sequence commands such as enable.
	LoginDelay = 1 * time.Second
)

// Detector reports whether buf holds the complete response to a command written elapsed ago.
type Detector interface {
	IsComplete(buf *stream.Buffer, elapsed time.Duration) bool
}

// Func adapts an ordinary function to a Detector.
type Func func(buf *stream.Buffer, elapsed time.Duration) bool

func (f Func) IsComplete(buf *stream.Buffer, elapsed time.Duration) bool {
	return f(buf, elapsed)
}
