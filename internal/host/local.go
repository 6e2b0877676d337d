package host

import (
	"context"
	"time"

	"github.com/girste/hardenspec/internal/system"
)

// LocalTransport runs commands with sh on this machine.
type LocalTransport struct {
	timeout time.Duration
}

func NewLocal(timeout time.Duration) *LocalTransport {
	return &LocalTransport{timeout: timeout}
}

func (t *LocalTransport) Name() string { return "local" }

func (t *LocalTransport) Exec(ctx context.Context, command string) (*CommandResult, error) {
	return system.RunCommand(ctx, t.timeout, "sh", "-c", command)
}

func (t *LocalTransport) Close() error { return nil }

// NsenterTransport runs commands inside the namespaces of the host's PID 1.
// It is used when auditing the host from a privileged container started
// with --pid=host.
type NsenterTransport struct {
	timeout time.Duration
}

func NewNsenter(timeout time.Duration) *NsenterTransport {
	return &NsenterTransport{timeout: timeout}
}

func (t *NsenterTransport) Name() string { return "nsenter" }

func (t *NsenterTransport) Exec(ctx context.Context, command string) (*CommandResult, error) {
	return system.RunCommand(ctx, t.timeout,
		"nsenter", "-t", "1", "-m", "-u", "-n", "-i", "--", "sh", "-c", command)
}

func (t *NsenterTransport) Close() error { return nil }
