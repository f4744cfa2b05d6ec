// Package session drives one interactive CLI shell on a network device: it logs in, sends
// commands one at a time and decides, through a pluggable detector, when each command's
// output is complete.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/morganhein/netsync/detect"
	"github.com/morganhein/netsync/devices"
	"github.com/morganhein/netsync/logger"
	"github.com/morganhein/netsync/pubsub"
	"github.com/morganhein/netsync/schema"
	"github.com/morganhein/netsync/stream"
)

var log schema.Logger

func init() {
	log = logger.Log
}

const redacted = "********"

// PrivilegeResult is what EnterPrivilegedMode observed. A failed escalation is not an error:
// the caller inspects PromptChar or Privilege.
type PrivilegeResult struct {
	Output     string
	Prompt     string
	PromptChar byte
	Privilege  schema.Privilege
}

// Session is not safe for concurrent commands; calls are serialized on an internal lock.
type Session struct {
	ID string

	dialer schema.Dialer
	target schema.Target
	ch     schema.Channel

	mu        sync.Mutex
	state     schema.State
	privilege schema.Privilege
	prompt    string
	banner    string
	buf       stream.Buffer

	detector       detect.Detector
	loginDetector  detect.Detector
	profile        devices.Profile
	profileSet     bool
	pollInterval   time.Duration
	commandTimeout time.Duration
	bannerTimeout  time.Duration

	commandTimeoutSet bool
	terminator        string
	publisher         *pubsub.Publisher
}

// New returns a disconnected session. Without options every command waits
// detect.DefaultDelay and the login sequence waits detect.LoginDelay. A detector given
// with WithDetector alone also judges the login sequence.
func New(dialer schema.Dialer, opts ...Option) *Session {
	s := &Session{
		ID:             uuid.NewString(),
		dialer:         dialer,
		state:          schema.Disconnected,
		pollInterval:   DefaultPollInterval,
		commandTimeout: DefaultCommandTimeout,
		bannerTimeout:  DefaultBannerTimeout,
		terminator:     DefaultLineTerminator,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.detector == nil {
		s.detector = detect.NewFixedDelay(detect.DefaultDelay)
		if s.loginDetector == nil {
			s.loginDetector = detect.NewFixedDelay(detect.LoginDelay)
		}
	}
	if s.loginDetector == nil {
		s.loginDetector = s.detector
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	return s
}

// Login authenticates through the dialer and opens the interactive shell. Any failure to
// reach a shell is reported as an *AuthenticationError.
func (s *Session) Login(ctx context.Context, target schema.Target, creds schema.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case schema.Closed:
		return ErrSessionClosed
	case schema.ShellActive:
		return fmt.Errorf("login to %s: %w", target.Host, ErrInvalidState)
	}
	if !s.profileSet {
		p, ok := devices.Lookup(target.DeviceType)
		if !ok && target.DeviceType != "" {
			log.Warningf("Unknown device type %q for %s, using %s.", target.DeviceType, target.Host, p.Name)
		}
		s.profile = p
	}
	if !s.commandTimeoutSet {
		s.commandTimeout = s.profileTimeout()
	}
	if s.publisher == nil {
		s.publisher = pubsub.New(target.Host)
	}
	s.target = target

	log.Debugf("[%s] logging into %s as %s", s.ID, target.Host, creds.Username)
	ch, err := s.dialer.Dial(ctx, target, creds)
	if err != nil {
		return &AuthenticationError{Host: target.Host, Err: err}
	}
	s.ch = ch
	s.state = schema.ShellActive
	log.Infof("Logged into %s.", target.Host)

	if s.bannerTimeout <= 0 {
		return nil
	}
	bctx, cancel := context.WithTimeout(ctx, s.bannerTimeout)
	defer cancel()
	res, err := s.collect(bctx, "", detect.NewPattern(s.profile.Prompt))
	s.banner = res.Text
	var te *TimeoutError
	switch {
	case err == nil:
	case errors.As(err, &te):
		log.Warningf("No prompt from %s within %s, continuing.", target.Host, s.bannerTimeout)
	case errors.Is(err, ErrChannelClosed):
		return &AuthenticationError{Host: target.Host, Err: err}
	case errors.Is(err, context.Canceled):
		s.closeLocked()
		return err
	default:
		log.Warningf("Reading banner from %s: %s", target.Host, err)
	}
	return nil
}

// SendCommand writes command plus the line terminator and collects output until the
// detector reports completion. The command is bounded by ctx and by the session's command
// timeout, whichever ends first.
func (s *Session) SendCommand(ctx context.Context, command string) (schema.CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(ctx, command, command, s.detector)
}

// EnterPrivilegedMode sends the profile's enable command and then password, both judged by
// the login detector.
func (s *Session) EnterPrivilegedMode(ctx context.Context, password string) (PrivilegeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return PrivilegeResult{}, err
	}
	if s.profile.EnableCommand == "" {
		log.Debugf("%s has no enable command, staying at %s", s.profile.Name, s.privilege)
		return PrivilegeResult{Prompt: s.prompt, PromptChar: lastChar(s.prompt), Privilege: s.privilege}, nil
	}
	first, err := s.send(ctx, s.profile.EnableCommand, s.profile.EnableCommand, s.loginDetector)
	if err != nil {
		return PrivilegeResult{Output: first.Text}, err
	}
	second, err := s.send(ctx, password, redacted, s.loginDetector)
	out := PrivilegeResult{
		Output:     first.Text + second.Text,
		Prompt:     second.Prompt,
		PromptChar: second.PromptChar(),
	}
	if err != nil {
		return out, err
	}
	out.Privilege = privilegeOf(out.PromptChar)
	if out.Privilege != schema.PrivilegeUnknown {
		s.privilege = out.Privilege
	}
	if out.Privilege != schema.PrivilegeEscalated {
		log.Warningf("%s did not reach privileged mode, prompt is %q", s.target.Host, out.Prompt)
	}
	return out, nil
}

// DisablePaging turns off output pagination with the profile's paging command.
func (s *Session) DisablePaging(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}
	if s.profile.PagingCommand == "" {
		return nil
	}
	_, err := s.send(ctx, s.profile.PagingCommand, s.profile.PagingCommand, s.loginDetector)
	return err
}

// Close releases the channel. It never fails and may be called any number of times.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *Session) closeLocked() {
	if s.state == schema.Closed {
		return
	}
	if s.ch != nil {
		if err := s.ch.Close(); err != nil {
			log.Debugf("[%s] closing channel to %s: %s", s.ID, s.target.Host, err)
		}
	}
	s.state = schema.Closed
}

func (s *Session) State() schema.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Privilege is derived from the most recent '#' or '>' prompt seen.
func (s *Session) Privilege() schema.Privilege {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.privilege
}

// Prompt is the last non-empty line of the most recent output.
func (s *Session) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// Banner is whatever the device printed before its first prompt.
func (s *Session) Banner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

func (s *Session) Target() schema.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

func (s *Session) Profile() devices.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *Session) Publisher() *pubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publisher
}

func (s *Session) profileTimeout() time.Duration {
	if s.profile.CommandTimeout > 0 {
		return s.profile.CommandTimeout
	}
	return DefaultCommandTimeout
}

// timeoutFor is the command timeout for a command judged by d, stretched so a fixed delay
// always fits inside it.
func (s *Session) timeoutFor(d detect.Detector) time.Duration {
	t := s.commandTimeout
	if fd, ok := d.(detect.FixedDelay); ok && t > 0 && t <= fd.Delay {
		t += fd.Delay
	}
	return t
}

func (s *Session) usable() error {
	switch s.state {
	case schema.Closed:
		return ErrSessionClosed
	case schema.Disconnected:
		return ErrInvalidState
	}
	return nil
}

// send writes one line and collects its output. shown is what goes to the transcript.
func (s *Session) send(ctx context.Context, command, shown string, d detect.Detector) (schema.CommandResult, error) {
	if err := s.usable(); err != nil {
		return schema.CommandResult{Command: shown}, err
	}
	if err := s.drain(); err != nil {
		return schema.CommandResult{Command: shown}, err
	}
	if _, err := s.ch.Write([]byte(command + s.terminator)); err != nil {
		s.closeLocked()
		return schema.CommandResult{Command: shown}, fmt.Errorf("write %q: %w: %w", shown, ErrChannelClosed, err)
	}
	s.publisher.Publish(schema.Stdin, shown)
	log.Debugf("[%s] %s# %s", s.ID, s.target.Host, shown)

	if t := s.timeoutFor(d); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	return s.collect(ctx, shown, d)
}

// drain throws away output left over from an earlier command that timed out or failed to
// decode, so it is not taken for the answer to the next one.
func (s *Session) drain() error {
	for s.ch.HasDataPending() {
		stale, err := s.ch.ReadAvailable()
		if err != nil {
			s.closeLocked()
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%s: %w", s.target.Host, ErrChannelClosed)
			}
			return fmt.Errorf("read from %s: %w: %w", s.target.Host, ErrChannelClosed, err)
		}
		if len(stale) == 0 {
			return nil
		}
		log.Debugf("[%s] discarding %d stale bytes from %s: %q", s.ID, len(stale), s.target.Host, stale)
	}
	return nil
}

// collect resets the buffer and polls the channel until d fires, the channel closes or
// ctx ends.
func (s *Session) collect(ctx context.Context, shown string, d detect.Detector) (schema.CommandResult, error) {
	s.buf.Reset()
	start := time.Now()
	answered := 0
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	result := func() schema.CommandResult {
		now := time.Now()
		return schema.CommandResult{
			Command:     shown,
			Text:        s.buf.String(),
			Prompt:      s.buf.LastNonEmptyLine(),
			CompletedAt: now,
			Elapsed:     now.Sub(start),
		}
	}

	for {
		if s.ch.HasDataPending() {
			chunk, err := s.ch.ReadAvailable()
			if err != nil {
				s.closeLocked()
				if errors.Is(err, io.EOF) {
					return result(), fmt.Errorf("%s: %w", s.target.Host, ErrChannelClosed)
				}
				return result(), fmt.Errorf("read from %s: %w: %w", s.target.Host, ErrChannelClosed, err)
			}
			if len(chunk) > 0 {
				if err := s.buf.Append(chunk); err != nil {
					return result(), fmt.Errorf("output of %q: %w", shown, err)
				}
				s.publisher.Publish(schema.Stdout, string(chunk))
			}
		}
		if err := s.handleContinuation(&answered); err != nil {
			return result(), err
		}
		if d.IsComplete(&s.buf, time.Since(start)) {
			r := result()
			s.observePrompt(r.Prompt)
			return r, nil
		}
		select {
		case <-ctx.Done():
			r := result()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return r, &TimeoutError{Command: shown, After: r.Elapsed, Partial: r.Text}
			}
			return r, ctx.Err()
		case <-ticker.C:
		}
	}
}

// handleContinuation answers a pager prompt with a single space. Only text that arrived
// after the previous answer is looked at, so a pager line being erased is not answered twice.
func (s *Session) handleContinuation(answered *int) error {
	if len(s.profile.Continuation) == 0 || s.buf.Len() <= *answered {
		return nil
	}
	text := s.buf.String()
	if *answered > 0 {
		text = text[*answered:]
	}
	line := stream.LastNonEmptyLine(text)
	if line == "" {
		return nil
	}
	for _, re := range s.profile.Continuation {
		if !re.MatchString(line) {
			continue
		}
		*answered = s.buf.Len()
		if _, err := s.ch.Write([]byte(" ")); err != nil {
			s.closeLocked()
			return fmt.Errorf("continue paging: %w: %w", ErrChannelClosed, err)
		}
		s.publisher.Publish(schema.Stdin, " ")
		return nil
	}
	return nil
}

func (s *Session) observePrompt(prompt string) {
	if prompt == "" {
		return
	}
	s.prompt = prompt
	if p := privilegeOf(lastChar(prompt)); p != schema.PrivilegeUnknown {
		s.privilege = p
	}
}

func privilegeOf(c byte) schema.Privilege {
	switch c {
	case '#':
		return schema.PrivilegeEscalated
	case '>':
		return schema.PrivilegeNormal
	}
	return schema.PrivilegeUnknown
}

func lastChar(s string) byte {
	if s == "" {
		return 0
	}
	return s[len(s)-1]
}
