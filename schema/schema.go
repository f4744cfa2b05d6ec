package schema

import (
	"context"
	"time"
)

type EventType int
type State int
type Privilege int

const (
	Stdin EventType = iota
	Stderr
	Stdout
)

const (
	Disconnected State = iota
	ShellActive
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ShellActive:
		return "shell-active"
	case Closed:
		return "closed"
	}
	return "unknown"
}

const (
	PrivilegeUnknown Privilege = iota
	PrivilegeNormal
	PrivilegeEscalated
)

func (p Privilege) String() string {
	switch p {
	case PrivilegeNormal:
		return "normal"
	case PrivilegeEscalated:
		return "escalated"
	}
	return "unknown"
}

// MessageEvent is a single piece of traffic on a session, published for transcripts.
type MessageEvent struct {
	Source  string
	Message string
	Dir     EventType
	Time    time.Time
}

// Target identifies the device a session is opened against.
type Target struct {
	Host       string
	Port       int
	DeviceType string
}

// Credentials are handed to the transport once, at login. Nothing in the core prompts for them.
type Credentials struct {
	Username       string
	Password       string
	EnablePassword string
	KeyPath        string
	Passphrase     string
}

// CommandResult is what a single command produced before its completion detector fired.
type CommandResult struct {
	Command     string
	Text        string
	Prompt      string // last non-empty line when the command completed
	CompletedAt time.Time
	Elapsed     time.Duration
}

// PromptChar returns the trailing character of the prompt, or 0 when there is none.
func (r CommandResult) PromptChar() byte {
	if len(r.Prompt) == 0 {
		return 0
	}
	return r.Prompt[len(r.Prompt)-1]
}

type Channel interface {
	//Write sends raw bytes to the remote shell
	Write(p []byte) (int, error)
	//ReadAvailable returns everything received since the last call without blocking.
	//Once the remote side has closed and all data was drained it returns io.EOF.
	ReadAvailable() ([]byte, error)
	//HasDataPending reports whether ReadAvailable would return data or the closing io.EOF
	HasDataPending() bool
	//Close releases the channel and the connection under it
	Close() error
}

type Dialer interface {
	//Dial authenticates against target and returns an interactive shell channel
	Dial(ctx context.Context, target Target, creds Credentials) (Channel, error)
}

type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warning(args ...interface{})
	Warningf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Critical(args ...interface{})
	Criticalf(format string, args ...interface{})
}
