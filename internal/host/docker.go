package host

import (
	"context"
	"strings"
	"time"

	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/system"
)

// DockerTransport runs commands in a running container through docker exec.
type DockerTransport struct {
	container string
	timeout   time.Duration
}

// DialDocker checks the container is running and returns its transport.
func DialDocker(ctx context.Context, container string, timeout time.Duration) (*DockerTransport, error) {
	if !system.CommandExists("docker") {
		return nil, herr.Wrap(herr.ErrTransport, "docker not found in PATH")
	}
	res, err := system.RunCommand(ctx, timeout, "docker", "inspect", "-f", "{{.State.Running}}", container)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, herr.Wrap(herr.ErrTransport, "container %s: %s", container, strings.TrimSpace(res.Stderr))
	}
	if strings.TrimSpace(res.Stdout) != "true" {
		return nil, herr.Wrap(herr.ErrTransport, "container %s is not running", container)
	}
	return &DockerTransport{container: container, timeout: timeout}, nil
}

func (t *DockerTransport) Name() string { return "docker" }

func (t *DockerTransport) Exec(ctx context.Context, command string) (*CommandResult, error) {
	res, err := system.RunCommand(ctx, t.timeout, "docker", "exec", t.container, "sh", "-c", command)
	if err != nil {
		return res, err
	}
	// docker reports its own failures on stderr with a fixed prefix, distinct
	// from anything the command inside the container prints
	if !res.Success && isDockerError(res.Stderr) {
		return res, herr.Wrap(herr.ErrTransport, "docker exec %s: %s", t.container, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

func (t *DockerTransport) Close() error { return nil }

func isDockerError(stderr string) bool {
	return strings.HasPrefix(stderr, "Error response from daemon") ||
		strings.HasPrefix(stderr, "Error: No such container")
}
