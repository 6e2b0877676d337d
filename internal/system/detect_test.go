package system

import "testing"

func TestNormalizeDistro(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ubuntu", "ubuntu", "ubuntu"},
		{"debian", "Debian", "debian"},
		{"rhel", "rhel", "rhel"},
		{"redhat", "RedHat", "rhel"},
		{"arch", "arch", "arch"},
		{"unknown", "someother", "someother"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDistro(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeDistro(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseOSRelease(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantDistro string
		wantCode   string
	}{
		{
			name:       "ubuntu",
			content:    "PRETTY_NAME=\"Ubuntu 22.04.4 LTS\"\nID=ubuntu\nID_LIKE=debian\nVERSION_CODENAME=jammy\n",
			wantDistro: "ubuntu",
			wantCode:   "jammy",
		},
		{
			name:       "derivative resolved through ID_LIKE",
			content:    "ID=linuxmint\nID_LIKE=\"ubuntu debian\"\n",
			wantDistro: "ubuntu",
		},
		{
			name:       "rocky",
			content:    "ID=\"rocky\"\nID_LIKE=\"rhel centos fedora\"\n",
			wantDistro: "rhel",
		},
		{
			name:       "empty",
			content:    "",
			wantDistro: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := ParseOSRelease(tt.content)
			if got := rel.Distro(); got != tt.wantDistro {
				t.Errorf("Distro() = %q, want %q", got, tt.wantDistro)
			}
			if rel.VersionCodename != tt.wantCode {
				t.Errorf("VersionCodename = %q, want %q", rel.VersionCodename, tt.wantCode)
			}
		})
	}
}

func TestIsDebian(t *testing.T) {
	if !isDebian("ubuntu") {
		t.Error("ubuntu should be debian-based")
	}
	if isDebian("rhel") {
		t.Error("rhel should not be debian-based")
	}
	if !IsRHEL("fedora") {
		t.Error("fedora should be rhel-based")
	}
}
