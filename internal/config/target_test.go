package config

import "testing"

func TestApplyTargetURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    TargetConfig
		wantErr bool
	}{
		{
			name: "local",
			raw:  "local://",
			want: TargetConfig{Transport: TransportLocal, Port: 22, Sudo: SudoAuto},
		},
		{
			name: "nsenter",
			raw:  "nsenter://",
			want: TargetConfig{Transport: TransportNsenter, Port: 22, Sudo: SudoAuto},
		},
		{
			name: "docker",
			raw:  "docker://hardened-ubuntu",
			want: TargetConfig{Transport: TransportDocker, Container: "hardened-ubuntu", Port: 22, Sudo: SudoAuto},
		},
		{
			name: "ssh with user and port",
			raw:  "ssh://auditor@10.0.3.7:2222?sudo=always",
			want: TargetConfig{Transport: TransportSSH, Host: "10.0.3.7", Port: 2222, User: "auditor", Sudo: SudoAlways},
		},
		{
			name: "ssh identity",
			raw:  "ssh://web01?identity=/keys/audit",
			want: TargetConfig{Transport: TransportSSH, Host: "web01", Port: 22, IdentityFile: "/keys/audit", Sudo: SudoAuto},
		},
		{name: "docker without container", raw: "docker://", wantErr: true},
		{name: "ssh without host", raw: "ssh://", wantErr: true},
		{name: "bad port", raw: "ssh://web01:ssh", wantErr: true},
		{name: "unknown scheme", raw: "winrm://web01", wantErr: true},
		{name: "local with host", raw: "local://web01", wantErr: true},
		{name: "bad sudo", raw: "local://?sudo=maybe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyTargetURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ApplyTargetURL(%q) error = nil, want error", tt.raw)
				}
				if cfg.Target != Default().Target {
					t.Errorf("target modified on error: %+v", cfg.Target)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyTargetURL(%q) error = %v", tt.raw, err)
			}
			if cfg.Target != tt.want {
				t.Errorf("Target = %+v, want %+v", cfg.Target, tt.want)
			}
		})
	}
}

func TestTargetString(t *testing.T) {
	tests := []struct {
		target TargetConfig
		want   string
	}{
		{TargetConfig{Transport: TransportLocal}, "local://"},
		{TargetConfig{Transport: TransportDocker, Container: "app"}, "docker://app"},
		{TargetConfig{Transport: TransportSSH, Host: "web01", Port: 22, User: "ops"}, "ssh://ops@web01"},
		{TargetConfig{Transport: TransportSSH, Host: "web01", Port: 2222}, "ssh://web01:2222"},
	}

	for _, tt := range tests {
		if got := tt.target.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
