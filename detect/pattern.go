package detect

import (
	"regexp"
	"time"

	"github.com/morganhein/netsync/stream"
)

// DefaultPrompt matches the usual user, privileged and shell prompts.
var DefaultPrompt = regexp.MustCompile(`> *$|# *$|\$ *$`)

// Pattern completes when the last non-empty line matches Prompt.
type Pattern struct {
	Prompt *regexp.Regexp
}

func NewPattern(prompt *regexp.Regexp) Pattern {
	if prompt == nil {
		prompt = DefaultPrompt
	}
	return Pattern{Prompt: prompt}
}

func (p Pattern) IsComplete(buf *stream.Buffer, _ time.Duration) bool {
	if buf == nil || buf.Len() == 0 {
		return false
	}
	prompt := p.Prompt
	if prompt == nil {
		prompt = DefaultPrompt
	}
	line := buf.LastNonEmptyLine()
	return line != "" && prompt.MatchString(line)
}

func (p Pattern) String() string {
	if p.Prompt == nil {
		return "pattern(" + DefaultPrompt.String() + ")"
	}
	return "pattern(" + p.Prompt.String() + ")"
}
