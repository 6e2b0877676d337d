package system

import (
	"context"
	"testing"
	"time"

	herr "github.com/girste/hardenspec/internal/errors"
)

func TestTimeoutConstants(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		min     time.Duration
	}{
		{"TimeoutShort", TimeoutShort, 1 * time.Second},
		{"TimeoutMedium", TimeoutMedium, 5 * time.Second},
		{"TimeoutLong", TimeoutLong, 10 * time.Second},
		{"TimeoutVeryLong", TimeoutVeryLong, 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.timeout < tt.min {
				t.Errorf("%s = %v, want >= %v", tt.name, tt.timeout, tt.min)
			}
		})
	}
}

func TestRunCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("successful command", func(t *testing.T) {
		result, err := RunCommand(ctx, TimeoutShort, "sh", "-c", "echo hello")
		if err != nil {
			t.Fatalf("RunCommand() error = %v", err)
		}
		if !result.Success {
			t.Errorf("Success = false, want true")
		}
		if result.Stdout != "hello\n" {
			t.Errorf("Stdout = %q, want %q", result.Stdout, "hello\n")
		}
		if result.ExitCode != 0 {
			t.Errorf("ExitCode = %d, want 0", result.ExitCode)
		}
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		result, err := RunCommand(ctx, TimeoutShort, "sh", "-c", "echo oops >&2; exit 3")
		if err != nil {
			t.Fatalf("RunCommand() error = %v", err)
		}
		if result.Success {
			t.Error("Success = true, want false")
		}
		if result.ExitCode != 3 {
			t.Errorf("ExitCode = %d, want 3", result.ExitCode)
		}
		if result.Stderr != "oops\n" {
			t.Errorf("Stderr = %q, want %q", result.Stderr, "oops\n")
		}
	})

	t.Run("missing executable is a transport error", func(t *testing.T) {
		_, err := RunCommand(ctx, TimeoutShort, "nonexistent-cmd-xyz")
		if !herr.Is(err, herr.ErrTransport) {
			t.Errorf("RunCommand() error = %v, want ErrTransport", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		result, err := RunCommand(ctx, 50*time.Millisecond, "sleep", "5")
		if !herr.Is(err, herr.ErrTimeoutExceeded) {
			t.Fatalf("RunCommand() error = %v, want ErrTimeoutExceeded", err)
		}
		if result == nil || !result.TimedOut {
			t.Errorf("TimedOut = false, want true")
		}
	})

	t.Run("no command specified", func(t *testing.T) {
		result, err := RunCommand(ctx, TimeoutShort)
		if err == nil {
			t.Error("RunCommand() with no args should return error")
		}
		if result != nil {
			t.Errorf("RunCommand() returned result = %v, want nil", result)
		}
	})
}

func TestCommandExists(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{"sh exists", "sh", true},
		{"nonexistent", "nonexistent-cmd-xyz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CommandExists(tt.command)
			if got != tt.want {
				t.Errorf("CommandExists(%q) = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunCommand(ctx, TimeoutShort, "sleep", "1")
	if err == nil {
		t.Error("RunCommand() with cancelled context should return error")
	}
}
