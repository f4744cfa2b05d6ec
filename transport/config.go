package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/morganhein/netsync/devices"
	"github.com/morganhein/netsync/schema"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// loadSigner reads a private key, using passphrase when the key is encrypted.
func loadSigner(path, passphrase string) (ssh.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(b, []byte(passphrase))
	}
	s, err := ssh.ParsePrivateKey(b)
	if err == nil {
		return s, nil
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		return nil, fmt.Errorf("private key %s is encrypted and no passphrase was given", path)
	}
	return nil, err
}

// authMethods also returns the ssh agent connection when one was opened; the agent signs
// during the handshake, so it stays open until the caller closes it.
func (s *SSH) authMethods(creds schema.Credentials) ([]ssh.AuthMethod, io.Closer, error) {
	var auths []ssh.AuthMethod
	if creds.KeyPath != "" {
		signer, err := loadSigner(creds.KeyPath, creds.Passphrase)
		if err != nil {
			return nil, nil, fmt.Errorf("load key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}
	if creds.Password != "" {
		auths = append(auths, ssh.Password(creds.Password))
		// many network boxes only offer keyboard-interactive for the same password
		auths = append(auths, ssh.KeyboardInteractive(
			func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = creds.Password
				}
				return answers, nil
			}))
	}
	var agentConn io.Closer
	if s.UseAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			if conn, err := net.Dial("unix", sock); err == nil {
				agentConn = conn
				auths = append(auths, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			} else {
				log.Debugf("ssh agent at %s unavailable: %s", sock, err)
			}
		}
	}
	if len(auths) == 0 {
		return nil, nil, errors.New("no authentication method: set a password, a key or use the agent")
	}
	return auths, agentConn, nil
}

func (s *SSH) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if !s.StrictHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if _, err := os.Stat(s.KnownHosts); err != nil {
		return nil, fmt.Errorf("known_hosts file not found at %s and strict host key checking is on", s.KnownHosts)
	}
	cb, err := knownhosts.New(s.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("known_hosts: %w", err)
	}
	return cb, nil
}

// CreateSSHConfig builds the client configuration for one device. The returned closer
// releases the ssh agent connection and is nil when no agent was used.
func (s *SSH) CreateSSHConfig(target schema.Target, creds schema.Credentials) (*ssh.ClientConfig, io.Closer, error) {
	hostKeyCB, err := s.hostKeyCallback()
	if err != nil {
		return nil, nil, err
	}
	auths, agentConn, err := s.authMethods(creds)
	if err != nil {
		return nil, nil, err
	}
	timeout := s.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	cfg := &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            auths,
		HostKeyCallback: hostKeyCB,
		Timeout:         timeout,
	}
	if profile, ok := devices.Lookup(target.DeviceType); ok {
		cfg.Ciphers = profile.Ciphers
		cfg.KeyExchanges = profile.KeyExchanges
	}
	return cfg, agentConn, nil
}

const DefaultDialTimeout = 15 * time.Second
