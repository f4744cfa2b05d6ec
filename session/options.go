package session

import (
	"regexp"
	"time"

	"github.com/morganhein/netsync/detect"
	"github.com/morganhein/netsync/devices"
	"github.com/morganhein/netsync/pubsub"
)

const (
	DefaultPollInterval   = 20 * time.Millisecond
	DefaultCommandTimeout = 30 * time.Second
	DefaultBannerTimeout  = 5 * time.Second
	DefaultLineTerminator = "\n"
)

type Option func(*Session)

// WithDetector sets the completion policy for ordinary commands, and for the login sequence
// unless another option sets that one.
func WithDetector(d detect.Detector) Option {
	return func(s *Session) {
		s.detector = d
	}
}

// WithLoginDetector sets the policy used for enable, the enable password and paging.
func WithLoginDetector(d detect.Detector) Option {
	return func(s *Session) {
		s.loginDetector = d
	}
}

// TimerMethod waits a fixed delay for every command and LoginDelay for the login sequence.
func TimerMethod(delay time.Duration) Option {
	return func(s *Session) {
		s.detector = detect.NewFixedDelay(delay)
		s.loginDetector = detect.NewFixedDelay(detect.LoginDelay)
	}
}

// TrailingMethod waits for a trailing '#' or ':' prompt on every command.
func TrailingMethod() Option {
	return func(s *Session) {
		s.detector = detect.NewPromptTrailing()
		s.loginDetector = detect.NewPromptTrailing()
	}
}

// PatternMethod waits for the last line to match prompt on every command.
func PatternMethod(prompt *regexp.Regexp) Option {
	return func(s *Session) {
		s.detector = detect.NewPattern(prompt)
		s.loginDetector = s.detector
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		s.pollInterval = d
	}
}

// WithCommandTimeout bounds each command when the caller's context has no earlier deadline.
// Zero leaves commands bounded by the context alone. Without this option the device
// profile's timeout applies. Either way a FixedDelay at least as long as the timeout
// stretches it by the delay.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.commandTimeout = d
		s.commandTimeoutSet = true
	}
}

// WithBannerTimeout bounds the wait for the first prompt after login. Zero skips the wait.
func WithBannerTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.bannerTimeout = d
	}
}

func WithLineTerminator(t string) Option {
	return func(s *Session) {
		s.terminator = t
	}
}

// WithProfile overrides the profile picked from the target's device type.
func WithProfile(p devices.Profile) Option {
	return func(s *Session) {
		s.profile = p
		s.profileSet = true
	}
}

func WithPublisher(p *pubsub.Publisher) Option {
	return func(s *Session) {
		s.publisher = p
	}
}
