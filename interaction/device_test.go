package interaction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/morganhein/netsync/schema"
	"github.com/morganhein/netsync/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted answers commands from a table, echoing them and ending with the prompt.
type scripted struct {
	prompt   string
	outputs  map[string]string
	fail     map[string]error
	sent     []string
	enablePw string
	paging   bool
}

func newScripted(prompt string) *scripted {
	return &scripted{prompt: prompt, outputs: map[string]string{}, fail: map[string]error{}, paging: true}
}

func (s *scripted) SendCommand(_ context.Context, cmd string) (schema.CommandResult, error) {
	s.sent = append(s.sent, cmd)
	res := schema.CommandResult{Command: cmd, Prompt: s.prompt}
	text := cmd + "\r\n"
	if out, ok := s.outputs[cmd]; ok {
		text += strings.ReplaceAll(out, "\n", "\r\n") + "\r\n"
	}
	res.Text = text + s.prompt
	if err := s.fail[cmd]; err != nil {
		return res, err
	}
	return res, nil
}

func (s *scripted) EnterPrivilegedMode(_ context.Context, pw string) (session.PrivilegeResult, error) {
	s.sent = append(s.sent, "enable", "<password>")
	if pw == s.enablePw {
		s.prompt = strings.TrimSuffix(s.prompt, ">") + "#"
	}
	return session.PrivilegeResult{Prompt: s.prompt, PromptChar: s.prompt[len(s.prompt)-1]}, nil
}

func (s *scripted) DisablePaging(_ context.Context) error {
	s.sent = append(s.sent, "terminal length 0")
	s.paging = false
	return nil
}

func (s *scripted) Prompt() string {
	return s.prompt
}

func TestEnabled(t *testing.T) {
	assert.True(t, Enabled(context.Background(), newScripted("Router#")))
	assert.False(t, Enabled(context.Background(), newScripted("Router>")))
}

func TestEnabled_SendsBlankLineWithoutPrompt(t *testing.T) {
	sh := newScripted("")
	assert.False(t, Enabled(context.Background(), sh))
	assert.Equal(t, []string{""}, sh.sent)
}

func TestPrepare_Escalates(t *testing.T) {
	sh := newScripted("Router>")
	sh.enablePw = "cisco"

	require.NoError(t, Prepare(context.Background(), sh, "cisco"))
	assert.Equal(t, []string{"enable", "<password>", "terminal length 0"}, sh.sent)
	assert.False(t, sh.paging)
}

func TestPrepare_AlreadyEnabled(t *testing.T) {
	sh := newScripted("Router#")
	require.NoError(t, Prepare(context.Background(), sh, "cisco"))
	assert.Equal(t, []string{"terminal length 0"}, sh.sent)
}

func TestPrepare_WrongEnablePassword(t *testing.T) {
	sh := newScripted("Router>")
	sh.enablePw = "cisco"

	err := Prepare(context.Background(), sh, "nope")
	assert.True(t, errors.Is(err, ErrNotPrivileged))
	assert.True(t, sh.paging)
}

func TestClean(t *testing.T) {
	res := schema.CommandResult{
		Command: "show clock",
		Text:    "show clock\r\n*10:00:00.000 UTC Mon Mar 1 2017\r\nRouter#",
		Prompt:  "Router#",
	}
	assert.Equal(t, "*10:00:00.000 UTC Mon Mar 1 2017", Clean(res))

	res = schema.CommandResult{Command: "end", Text: "end\r\nRouter#", Prompt: "Router#"}
	assert.Equal(t, "", Clean(res))

	res = schema.CommandResult{Command: "show x", Text: "\r\nsomething\r\n"}
	assert.Equal(t, "something", Clean(res))
}
