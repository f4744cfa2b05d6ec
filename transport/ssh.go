// Package transport opens interactive shell channels on network devices.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/morganhein/netsync/logger"
	"github.com/morganhein/netsync/schema"
	"golang.org/x/crypto/ssh"
)

var log schema.Logger

func init() {
	log = logger.Log
}

// SSH dials devices over ssh and starts a PTY-backed shell. The zero value dials with
// host keys unchecked, which is how most lab gear gets reached; set StrictHostKey for more.
type SSH struct {
	KnownHosts    string
	StrictHostKey bool
	UseAgent      bool
	DialTimeout   time.Duration
	Term          string
	Width         int
	Height        int
}

var _ schema.Dialer = (*SSH)(nil)

// Dial connects, authenticates and starts the remote shell.
func (s *SSH) Dial(ctx context.Context, target schema.Target, creds schema.Credentials) (schema.Channel, error) {
	cfg, agentConn, err := s.CreateSSHConfig(target, creds)
	if err != nil {
		return nil, err
	}
	release := func() {
		if agentConn != nil {
			_ = agentConn.Close()
		}
	}
	port := target.Port
	if port == 0 {
		port = 22
	}
	host := net.JoinHostPort(target.Host, strconv.Itoa(port))

	log.Debug("Dialing ", host)
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to dial %s: %w", host, err)
	}
	// the handshake does not take a context, bound it with the connection deadline
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, host, cfg)
	if err != nil {
		_ = conn.Close()
		release()
		return nil, fmt.Errorf("ssh handshake with %s: %w", host, err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	sh, err := s.openShell(client)
	if err != nil {
		_ = client.Close()
		release()
		return nil, err
	}
	sh.agent = agentConn
	log.Infof("SSH session created with %s.", host)
	return sh, nil
}

func (s *SSH) openShell(client *ssh.Client) (*shell, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	sh := &shell{client: client, session: session}
	session.Stdout = outputSink{sh}
	session.Stderr = outputSink{sh}

	sh.stdin, err = session.StdinPipe()
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("failed to open stdin: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,     // disable echoing
		ssh.TTY_OP_ISPEED: 14400, // input speed = 14.4kbaud
		ssh.TTY_OP_OSPEED: 14400, // output speed = 14.4kbaud
	}
	term, width, height := s.Term, s.Width, s.Height
	if term == "" {
		term = "xterm"
	}
	if width == 0 {
		width = 200
	}
	if height == 0 {
		height = 80
	}
	if err := session.RequestPty(term, height, width, modes); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("request for pseudo terminal failed: %w", err)
	}
	if err := session.Shell(); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}
	go sh.wait()
	return sh, nil
}

// shell is a Channel over one ssh session. Output is collected by the ssh library's copy
// goroutines through outputSink and handed out by ReadAvailable.
type shell struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	agent   io.Closer

	mu      sync.Mutex
	pending bytes.Buffer
	eof     bool

	closeOnce sync.Once
	closeErr  error
}

func (sh *shell) Write(p []byte) (int, error) {
	return sh.stdin.Write(p)
}

func (sh *shell) wait() {
	err := sh.session.Wait()
	if err != nil {
		log.Debugf("remote shell ended: %s", err)
	}
	sh.mu.Lock()
	sh.eof = true
	sh.mu.Unlock()
}

func (sh *shell) HasDataPending() bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.pending.Len() > 0 || sh.eof
}

func (sh *shell) ReadAvailable() ([]byte, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.pending.Len() == 0 {
		if sh.eof {
			return nil, io.EOF
		}
		return nil, nil
	}
	out := make([]byte, sh.pending.Len())
	copy(out, sh.pending.Bytes())
	sh.pending.Reset()
	return out, nil
}

func (sh *shell) Close() error {
	sh.closeOnce.Do(func() {
		_ = sh.stdin.Close()
		_ = sh.session.Close()
		if err := sh.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			sh.closeErr = err
		}
		if sh.agent != nil {
			_ = sh.agent.Close()
		}
		sh.mu.Lock()
		sh.eof = true
		sh.mu.Unlock()
	})
	return sh.closeErr
}

// outputSink receives the session's stdout and stderr.
type outputSink struct {
	sh *shell
}

func (o outputSink) Write(p []byte) (int, error) {
	o.sh.mu.Lock()
	defer o.sh.mu.Unlock()
	return o.sh.pending.Write(p)
}
