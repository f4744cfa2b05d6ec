package detect

import (
	"strings"
	"time"

	"github.com/morganhein/netsync/stream"
)

// DefaultTerminators are the characters a device prompt ends with: '#' for the privileged
// prompt and ':' for a password or confirmation prompt.
const DefaultTerminators = "#:"

// PromptTrailing waits until the last non-empty line looks like a prompt: a single token
// with no embedded space that ends in one of Terminators. It has no timeout of its own.
type PromptTrailing struct {
	Terminators string
}

func NewPromptTrailing() PromptTrailing {
	return PromptTrailing{Terminators: DefaultTerminators}
}

func (p PromptTrailing) IsComplete(buf *stream.Buffer, _ time.Duration) bool {
	if buf == nil || buf.Len() == 0 {
		return false
	}
	line := buf.LastNonEmptyLine()
	if line == "" || strings.Contains(line, " ") {
		// still streaming, or a data line rather than a prompt
		return false
	}
	terminators := p.Terminators
	if terminators == "" {
		terminators = DefaultTerminators
	}
	return strings.IndexByte(terminators, line[len(line)-1]) >= 0
}

func (p PromptTrailing) String() string {
	return "prompt-trailing"
}
