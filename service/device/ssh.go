package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/viant/scy/cred/secret"
	"golang.org/x/crypto/ssh"
)

// Default SSH timeouts.
const (
	DefaultConnTimeout    = 30 * time.Second
	DefaultCommandTimeout = 60 * time.Second
)

// SSHDialer opens FortiGate sessions over SSH.
type SSHDialer struct {
	ConnTimeout    time.Duration
	CommandTimeout time.Duration
	// Transcript receives every command and its output; write errors are ignored.
	Transcript io.Writer
	secrets    *secret.Service
}

// Dial connects and authenticates.
func (d *SSHDialer) Dial(ctx context.Context, config *Config, port int) (Session, error) {
	clientConfig, err := d.clientConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	address := config.Address(port)
	dialer := net.Dialer{Timeout: d.ConnTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, classifyConnect(address, err)
	}
	// bounds the banner exchange and authentication
	_ = conn.SetDeadline(time.Now().Add(d.ConnTimeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, classifyHandshake(address, err)
	}
	_ = conn.SetDeadline(time.Time{})
	return &sshSession{
		client:     ssh.NewClient(sshConn, chans, reqs),
		host:       config.Host,
		timeout:    d.CommandTimeout,
		transcript: d.Transcript,
	}, nil
}

func (d *SSHDialer) clientConfig(ctx context.Context, config *Config) (*ssh.ClientConfig, error) {
	if config.Password == "" && config.Credentials != "" {
		generic, err := d.secrets.GetCredentials(ctx, config.Credentials)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load credentials %s: %v", ErrAuthentication, config.Credentials, err)
		}
		clientConfig, err := generic.SSH.Config(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid credentials %s: %v", ErrAuthentication, config.Credentials, err)
		}
		if clientConfig.User == "" {
			clientConfig.User = config.Username
		}
		clientConfig.Timeout = d.ConnTimeout
		if clientConfig.HostKeyCallback == nil {
			clientConfig.HostKeyCallback = ssh.InsecureIgnoreHostKey()
		}
		return clientConfig, nil
	}
	password := config.Password
	return &ssh.ClientConfig{
		User: config.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		// FortiGate appliances are addressed by operator supplied IPs; there is
		// no known_hosts store to verify against.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.ConnTimeout,
	}, nil
}

// classifyConnect separates an unanswered connect from a refused or
// unreachable one.
func classifyConnect(address string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: failed to connect to %s: %v", ErrTimeout, address, err)
	}
	return fmt.Errorf("%w: failed to connect to %s: %v", ErrTransport, address, err)
}

func classifyHandshake(address string, err error) error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: handshake with %s: %v", ErrTimeout, address, err)
	case strings.Contains(err.Error(), "unable to authenticate"), strings.Contains(err.Error(), "no supported methods remain"):
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return fmt.Errorf("%w: handshake with %s: %v", ErrTransport, address, err)
}

type sshSession struct {
	client     *ssh.Client
	host       string
	timeout    time.Duration
	transcript io.Writer
	mux        sync.Mutex
}

func (s *sshSession) SendConfigSet(ctx context.Context, commands []string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: failed to open session: %v", ErrTransport, err)
	}
	defer session.Close()

	var output bytes.Buffer
	session.Stdout = &output
	session.Stderr = &output
	session.Stdin = strings.NewReader(strings.Join(append(closeConfigBlocks(commands), "exit"), "\n") + "\n")
	if err = session.Shell(); err != nil {
		return "", fmt.Errorf("%w: failed to start shell: %v", ErrTransport, err)
	}
	err = s.wait(ctx, session)
	text := output.String()
	s.record(strings.Join(commands, "\n"), text)
	return text, err
}

func (s *sshSession) SendCommand(ctx context.Context, command string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: failed to open session: %v", ErrTransport, err)
	}
	defer session.Close()

	var output bytes.Buffer
	session.Stdout = &output
	session.Stderr = &output
	if err = session.Start(command); err != nil {
		return "", fmt.Errorf("%w: failed to run %q: %v", ErrTransport, command, err)
	}
	err = s.wait(ctx, session)
	text := strings.TrimRight(output.String(), "\r\n")
	s.record(command, text)
	return text, err
}

// wait waits for the remote command, bounded by ctx and the command timeout.
// A non-zero remote exit status is not an error; the CLI reports failures in
// its output.
func (s *sshSession) wait(ctx context.Context, session *ssh.Session) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Wait() }()
	select {
	case err := <-done:
		var exitErr *ssh.ExitError
		var missing *ssh.ExitMissingError
		if err == nil || errors.As(err, &exitErr) || errors.As(err, &missing) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	case <-ctx.Done():
		_ = session.Close()
		return fmt.Errorf("%w: command did not complete: %v", ErrTimeout, ctx.Err())
	}
}

func (s *sshSession) record(input, output string) {
	if s.transcript == nil {
		return
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	_, _ = fmt.Fprintf(s.transcript, "%s [%s]\n>>> %s\n%s\n", time.Now().Format(time.RFC3339), s.host, input, output)
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

// NewSSHDialer creates a dialer with default timeouts.
func NewSSHDialer(transcript io.Writer) *SSHDialer {
	return &SSHDialer{
		ConnTimeout:    DefaultConnTimeout,
		CommandTimeout: DefaultCommandTimeout,
		Transcript:     transcript,
		secrets:        secret.New(),
	}
}
