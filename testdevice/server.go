// Package testdevice runs an in-process ssh server that behaves like a small Cisco-style
// CLI: a user prompt, enable with a password, paging, configuration modes and canned show
// output. Tests point a real transport at it.
package testdevice

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

type Config struct {
	Hostname       string
	Username       string // empty accepts any user
	Password       string // empty accepts any password
	EnablePassword string
	// Outputs maps a command line to what the device prints for it.
	Outputs map[string]string
	// PageSize is the number of lines shown before a --More-- prompt while paging is on.
	PageSize int
	// ChunkDelay, when set, spaces out the lines of every output.
	ChunkDelay time.Duration
	// Hang lists commands that never get a prompt back.
	Hang []string
	// Drop lists commands that make the device close the session.
	Drop []string
	// Garbage lists commands answered with invalid utf-8.
	Garbage []string
	// Banner is printed before the first prompt.
	Banner string
}

type Server struct {
	cfg      Config
	ln       net.Listener
	sshCfg   *ssh.ServerConfig
	wg       sync.WaitGroup
	mu       sync.Mutex
	received []string
	closed   chan struct{}
}

// Start listens on a random local port.
func Start(cfg Config) (*Server, error) {
	if cfg.Hostname == "" {
		cfg.Hostname = "Router"
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 4
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, closed: make(chan struct{})}
	s.sshCfg = &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if cfg.Username != "" && c.User() != cfg.Username {
				return nil, fmt.Errorf("unknown user %q", c.User())
			}
			if cfg.Password != "" && string(pass) != cfg.Password {
				return nil, fmt.Errorf("password rejected for %q", c.User())
			}
			return nil, nil
		},
	}
	s.sshCfg.AddHostKey(signer)

	s.ln, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s.wg.Add(1)
	go s.accept()
	return s, nil
}

// Host and Port give the listening address.
func (s *Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host(), strconv.Itoa(s.Port()))
}

// Received returns every line the device has read so far, in order.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func (s *Server) Close() error {
	close(s.closed)
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) record(line string) {
	s.mu.Lock()
	s.received = append(s.received, line)
	s.mu.Unlock()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(raw net.Conn) {
	sc, chans, reqs, err := ssh.NewServerConn(raw, s.sshCfg)
	if err != nil {
		_ = raw.Close()
		return
	}
	defer sc.Close()
	go ssh.DiscardRequests(reqs)
	go func() {
		<-s.closed
		_ = sc.Close()
	}()
	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "")
			continue
		}
		c, creqs, err := ch.Accept()
		if err != nil {
			continue
		}
		s.handleSession(c, creqs)
	}
}

func (s *Server) handleSession(ch ssh.Channel, in <-chan *ssh.Request) {
	defer ch.Close()
	for req := range in {
		switch req.Type {
		case "pty-req":
			_ = req.Reply(true, nil)
		case "shell":
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(in)
			newCLI(s, ch).run()
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}

type mode int

const (
	userMode mode = iota
	enableMode
	configMode
	interfaceMode
)

type cli struct {
	s          *Server
	ch         ssh.Channel
	r          *bufio.Reader
	mode       mode
	paging     bool
	awaitingPw bool
}

func newCLI(s *Server, ch ssh.Channel) *cli {
	return &cli{s: s, ch: ch, r: bufio.NewReader(ch), paging: true}
}

func (c *cli) prompt() string {
	h := c.s.cfg.Hostname
	switch c.mode {
	case enableMode:
		return h + "#"
	case configMode:
		return h + "(config)#"
	case interfaceMode:
		return h + "(config-if)#"
	}
	return h + ">"
}

func (c *cli) write(s string) {
	_, _ = c.ch.Write([]byte(s))
}

func (c *cli) run() {
	if c.s.cfg.Banner != "" {
		c.write(c.s.cfg.Banner + "\r\n")
	}
	c.write("\r\n" + c.prompt())
	for {
		line, err := c.readLine()
		if err != nil {
			return
		}
		c.s.record(line)
		if !c.handle(line) {
			return
		}
	}
}

func (c *cli) readLine() (string, error) {
	var sb strings.Builder
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return "", err
		}
		switch b {
		case '\r':
			if next, err := c.r.Peek(1); err == nil && next[0] == '\n' {
				_, _ = c.r.ReadByte()
			}
			return sb.String(), nil
		case '\n':
			return sb.String(), nil
		default:
			sb.WriteByte(b)
		}
	}
}

func contains(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}

// handle reacts to one input line; false ends the session.
func (c *cli) handle(line string) bool {
	cmd := strings.TrimSpace(line)

	if c.awaitingPw {
		c.awaitingPw = false
		if c.s.cfg.EnablePassword == "" || cmd == c.s.cfg.EnablePassword {
			c.mode = enableMode
			c.write("\r\n" + c.prompt())
		} else {
			c.write("\r\n% Access denied\r\n\r\n" + c.prompt())
		}
		return true
	}

	switch {
	case contains(c.s.cfg.Drop, cmd):
		return false
	case contains(c.s.cfg.Hang, cmd):
		c.write(cmd + "\r\n")
		return true
	case contains(c.s.cfg.Garbage, cmd):
		c.write(cmd + "\r\n")
		_, _ = c.ch.Write([]byte{0xff, 0xfe, '\r', '\n'})
		c.write(c.prompt())
		return true
	}

	// commands echo back like on a real terminal line
	c.write(cmd + "\r\n")

	switch {
	case cmd == "":
	case cmd == "exit" || cmd == "logout":
		if c.mode == interfaceMode {
			c.mode = configMode
			break
		}
		if c.mode == configMode {
			c.mode = enableMode
			break
		}
		return false
	case cmd == "enable":
		if c.mode == userMode {
			c.awaitingPw = true
			c.write("Password: ")
			return true
		}
	case cmd == "terminal length 0" || cmd == "terminal len 0":
		c.paging = false
	case cmd == "config t" || cmd == "configure terminal":
		if c.mode != enableMode {
			c.write("% Invalid input detected at '^' marker.\r\n\r\n")
			break
		}
		c.write("Enter configuration commands, one per line.  End with CNTL/Z.\r\n")
		c.mode = configMode
	case cmd == "end":
		if c.mode == configMode || c.mode == interfaceMode {
			c.mode = enableMode
		}
	case strings.HasPrefix(cmd, "interface ") && (c.mode == configMode || c.mode == interfaceMode):
		c.mode = interfaceMode
	case c.mode == configMode || c.mode == interfaceMode:
		// configuration lines are accepted silently
	default:
		out, ok := c.s.cfg.Outputs[cmd]
		if !ok {
			c.write("                ^\r\n% Invalid input detected at '^' marker.\r\n\r\n")
			break
		}
		if !c.output(out) {
			return false
		}
	}
	c.write(c.prompt())
	return true
}

// output prints out, pausing on --More-- while paging is on.
func (c *cli) output(out string) bool {
	lines := strings.Split(strings.TrimRight(out, "\r\n"), "\n")
	for i, l := range lines {
		if c.s.cfg.ChunkDelay > 0 {
			time.Sleep(c.s.cfg.ChunkDelay)
		}
		c.write(strings.TrimRight(l, "\r") + "\r\n")
		if c.paging && (i+1)%c.s.cfg.PageSize == 0 && i+1 < len(lines) {
			c.write(" --More-- ")
			if _, err := c.r.ReadByte(); err != nil {
				return false
			}
			c.write("\r          \r")
		}
	}
	return true
}
