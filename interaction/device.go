// Package interaction holds device workflows built on top of a session's command API.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/morganhein/netsync/logger"
	"github.com/morganhein/netsync/schema"
	"github.com/morganhein/netsync/session"
)

var log schema.Logger

func init() {
	log = logger.Log
}

var ErrNotPrivileged = errors.New("unable to enter privileged mode")

// Commander sends one command and returns its output.
type Commander interface {
	SendCommand(ctx context.Context, command string) (schema.CommandResult, error)
}

// Shell is the part of *session.Session the workflows need.
type Shell interface {
	Commander
	EnterPrivilegedMode(ctx context.Context, password string) (session.PrivilegeResult, error)
	DisablePaging(ctx context.Context) error
	Prompt() string
}

var _ Shell = (*session.Session)(nil)

// Enabled reports whether the device prompt ends in '#'. When no prompt has been seen yet
// a blank line is sent to get one.
func Enabled(ctx context.Context, sh Shell) bool {
	prompt := sh.Prompt()
	if prompt == "" {
		res, err := sh.SendCommand(ctx, "")
		if err != nil {
			return false
		}
		prompt = res.Prompt
	}
	log.Debugf("Enabled prompt: %s", prompt)
	return strings.HasSuffix(prompt, "#")
}

// Prepare gets a freshly logged in shell ready for work: privileged mode, then no paging.
func Prepare(ctx context.Context, sh Shell, enablePassword string) error {
	if !Enabled(ctx, sh) {
		res, err := sh.EnterPrivilegedMode(ctx, enablePassword)
		if err != nil {
			log.Warningf("Unable to enter privileged mode on device: %s", err)
			return err
		}
		if res.PromptChar != '#' {
			return fmt.Errorf("%w: prompt is %q", ErrNotPrivileged, res.Prompt)
		}
	}
	if err := sh.DisablePaging(ctx); err != nil {
		return fmt.Errorf("disable paging: %w", err)
	}
	return nil
}

// Clean drops the echoed command line and the trailing prompt from a command's output.
func Clean(res schema.CommandResult) string {
	lines := strings.Split(strings.ReplaceAll(res.Text, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) > 0 && res.Command != "" && strings.TrimSpace(lines[0]) == strings.TrimSpace(res.Command) {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > 0 && res.Prompt != "" && strings.TrimSpace(lines[len(lines)-1]) == res.Prompt {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
