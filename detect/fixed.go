package detect

import (
	"fmt"
	"time"

	"github.com/morganhein/netsync/stream"
)

// FixedDelay declares a response complete once Delay has passed, whatever the buffer holds.
// It always terminates, but a device slower than Delay gets its output truncated.
type FixedDelay struct {
	Delay time.Duration
}

func NewFixedDelay(delay time.Duration) FixedDelay {
	return FixedDelay{Delay: delay}
}

func (f FixedDelay) IsComplete(_ *stream.Buffer, elapsed time.Duration) bool {
	return elapsed >= f.Delay
}

func (f FixedDelay) String() string {
	return fmt.Sprintf("fixed-delay(%s)", f.Delay)
}
