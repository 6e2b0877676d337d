package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	"github.com/girste/hardenspec/internal/config"
	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/log"
	"github.com/girste/hardenspec/internal/util"
)

// SSHTransport runs commands over one SSH connection. Every command gets its
// own session; sessions multiplex over the connection so concurrent Exec
// calls are safe.
type SSHTransport struct {
	client    *ssh.Client
	agentConn net.Conn
	addr      string
	timeout   time.Duration
}

// DialSSH connects and authenticates to the target.
func DialSSH(ctx context.Context, t config.TargetConfig, dialTimeout, cmdTimeout time.Duration) (*SSHTransport, error) {
	tr := &SSHTransport{
		addr:    net.JoinHostPort(t.Host, strconv.Itoa(t.Port)),
		timeout: cmdTimeout,
	}

	auth, err := tr.authMethods(t)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyCallback(t)
	if err != nil {
		tr.closeAgent()
		return nil, err
	}

	username := t.User
	if username == "" {
		if u, err := user.Current(); err == nil {
			username = u.Username
		}
	}

	clientConfig := &ssh.ClientConfig{
		User:            username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", tr.addr)
	if err != nil {
		tr.closeAgent()
		return nil, herr.Wrap(herr.ErrTransport, "dial %s: %v", util.MaskAddress(tr.addr), err)
	}

	// The handshake ignores ctx, bound it with a deadline instead
	_ = conn.SetDeadline(time.Now().Add(dialTimeout))
	c, chans, reqs, err := ssh.NewClientConn(conn, tr.addr, clientConfig)
	if err != nil {
		conn.Close()
		tr.closeAgent()
		return nil, herr.Wrap(herr.ErrTransport, "ssh handshake with %s: %v", util.MaskAddress(tr.addr), err)
	}
	_ = conn.SetDeadline(time.Time{})

	tr.client = ssh.NewClient(c, chans, reqs)
	log.DebugEvent().Str("addr", util.MaskAddress(tr.addr)).Str("user", username).Msg("ssh connected")
	return tr, nil
}

func (t *SSHTransport) Name() string { return "ssh" }

func (t *SSHTransport) Exec(ctx context.Context, command string) (*CommandResult, error) {
	session, err := t.client.NewSession()
	if err != nil {
		return nil, herr.Wrap(herr.ErrTransport, "open session on %s: %v", util.MaskAddress(t.addr), err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		// Buffers are still owned by the session goroutine, report no output
		res := &CommandResult{ExitCode: -1, TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded)}
		if res.TimedOut {
			return res, herr.Wrap(herr.ErrTimeoutExceeded, "ssh command after %s", t.timeout)
		}
		return res, herr.Wrap(herr.ErrTransport, "ssh command: %v", ctx.Err())

	case err := <-done:
		res := &CommandResult{
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
			Success: err == nil,
		}
		var exitErr *ssh.ExitError
		switch {
		case err == nil:
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitStatus()
		default:
			return res, herr.Wrap(herr.ErrTransport, "ssh command on %s: %v", util.MaskAddress(t.addr), err)
		}
		return res, nil
	}
}

func (t *SSHTransport) Close() error {
	t.closeAgent()
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}

func (t *SSHTransport) closeAgent() {
	if t.agentConn != nil {
		t.agentConn.Close()
		t.agentConn = nil
	}
}

// authMethods prefers an explicit identity file and falls back to ssh-agent.
func (t *SSHTransport) authMethods(target config.TargetConfig) ([]ssh.AuthMethod, error) {
	if target.IdentityFile != "" {
		signer, err := loadIdentity(target.IdentityFile, target.PassphraseEnv)
		if err != nil {
			return nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, herr.Wrap(herr.ErrInvalidConfig, "no ssh credentials: set target.identityFile or SSH_AUTH_SOCK")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, herr.Wrap(herr.ErrTransport, "connect to ssh-agent: %v", err)
	}
	t.agentConn = conn
	return []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(conn).Signers)}, nil
}

func loadIdentity(path, passphraseEnv string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, herr.Wrap(herr.ErrInvalidConfig, "read identity file: %v", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		if err != nil {
			return nil, herr.Wrap(herr.ErrInvalidConfig, "parse identity %s: %v", path, err)
		}
		return signer, nil
	}

	passphrase, err := identityPassphrase(path, passphraseEnv)
	if err != nil {
		return nil, err
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(key, passphrase)
	if err != nil {
		return nil, herr.Wrap(herr.ErrInvalidConfig, "decrypt identity %s: %v", path, err)
	}
	return signer, nil
}

// identityPassphrase reads the passphrase from the configured environment
// variable, or prompts when stdin is a terminal.
func identityPassphrase(path, passphraseEnv string) ([]byte, error) {
	if passphraseEnv != "" {
		if v := os.Getenv(passphraseEnv); v != "" {
			return []byte(v), nil
		}
		return nil, herr.Wrap(herr.ErrInvalidConfig, "identity %s is encrypted and %s is empty", path, passphraseEnv)
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, herr.Wrap(herr.ErrInvalidConfig, "identity %s is encrypted, set target.passphraseEnv", path)
	}
	fmt.Fprintf(os.Stderr, "Passphrase for %s: ", path)
	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, herr.Wrap(herr.ErrInvalidInput, "read passphrase: %v", err)
	}
	return passphrase, nil
}

func hostKeyCallback(t config.TargetConfig) (ssh.HostKeyCallback, error) {
	if t.InsecureIgnoreHostKey {
		log.WarnEvent().Str("host", util.MaskHostname(t.Host)).Msg("host key verification disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}

	file := t.KnownHostsFile
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, herr.Wrap(herr.ErrInvalidConfig, "locate known_hosts: %v", err)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}

	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, herr.Wrap(herr.ErrInvalidConfig, "load known_hosts %s: %v", file, err)
	}
	return cb, nil
}
