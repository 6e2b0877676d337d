package errors

import (
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrTransport", ErrTransport, "transport failure"},
		{"ErrTimeoutExceeded", ErrTimeoutExceeded, "timeout exceeded"},
		{"ErrPermissionDenied", ErrPermissionDenied, "permission denied"},
		{"ErrCommandNotAllowed", ErrCommandNotAllowed, "command not allowed"},
		{"ErrInvalidConfig", ErrInvalidConfig, "invalid configuration"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrSignature", ErrSignature, "signature mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error message = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("wrap nil error", func(t *testing.T) {
		got := Wrap(nil, "context")
		if got != nil {
			t.Errorf("Wrap(nil) = %v, want nil", got)
		}
	})

	t.Run("wrap simple error", func(t *testing.T) {
		got := Wrap(ErrTransport, "ssh dial 10.0.0.5:22")
		if got == nil {
			t.Fatal("Wrap() = nil, want error")
		}
		want := "ssh dial 10.0.0.5:22: transport failure"
		if got.Error() != want {
			t.Errorf("Wrap() = %v, want %v", got.Error(), want)
		}
		if !Is(got, ErrTransport) {
			t.Error("Wrap() broke error chain")
		}
	})

	t.Run("wrap with args", func(t *testing.T) {
		got := Wrap(ErrTimeoutExceeded, "command %q timed out after %d seconds", "ufw status", 30)
		want := `command "ufw status" timed out after 30 seconds: timeout exceeded`
		if got.Error() != want {
			t.Errorf("Wrap() = %v, want %v", got.Error(), want)
		}
	})

	t.Run("double wrap keeps identity", func(t *testing.T) {
		got := Wrap(Wrap(ErrCommandNotAllowed, "rm"), "rule ssh.banner")
		if !Is(got, ErrCommandNotAllowed) {
			t.Error("nested Wrap() broke error chain")
		}
	})
}

func TestIs(t *testing.T) {
	wrapped := Wrap(ErrTransport, "context")

	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same error", ErrTransport, ErrTransport, true},
		{"different error", ErrTransport, ErrTimeoutExceeded, false},
		{"wrapped error", wrapped, ErrTransport, true},
		{"nil error", nil, ErrTransport, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.target); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
