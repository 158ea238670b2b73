package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseNestedForm(t *testing.T) {
	data := []byte(`cisco:
  n9k:
    9.3:
      - serial: S1
        mgmt_ip: 10.0.0.1
        hostname: leaf1
      - serial: S2
        mgmt_ip: 10.0.0.2
        port: 2222
  c8k:
    "17.9":
      devices:
        - serial: C1
          ip: 10.0.1.1
hp:
  "5945":
    "1.0":
      - serial_number: H1
        mgmt_ip: 10.0.2.1
        default_gateway: 10.0.2.254
        netmask: 255.255.255.0
`)
	entries, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	// Document order is reservation order.
	wantSerials := []string{"S1", "S2", "C1", "H1"}
	for i, want := range wantSerials {
		if entries[i].Device.Serial != want {
			t.Errorf("entry %d: serial = %q, want %q", i, entries[i].Device.Serial, want)
		}
	}

	// Unquoted 9.3 parses as the literal text, not a float.
	if entries[0].Version != "9.3" {
		t.Errorf("version = %q, want 9.3", entries[0].Version)
	}
	if entries[0].Device.Port != DefaultPort {
		t.Errorf("default port = %d, want %d", entries[0].Device.Port, DefaultPort)
	}
	if entries[1].Device.Port != 2222 {
		t.Errorf("explicit port = %d, want 2222", entries[1].Device.Port)
	}
	if entries[2].Device.MgmtIP != "10.0.1.1" {
		t.Errorf("ip alias not read: %q", entries[2].Device.MgmtIP)
	}
	if entries[3].Device.DefaultGateway != "10.0.2.254" {
		t.Errorf("default_gateway = %q", entries[3].Device.DefaultGateway)
	}
}

func TestParseLegacyVendorList(t *testing.T) {
	data := []byte(`vendors:
  - vendor: cisco
    models:
      - model: n9k
        versions:
          - version: "9.3"
            devices:
              - serial: S1
                mgmt_ip: 10.0.0.1
`)
	entries, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Vendor != "cisco" || e.Model != "n9k" || e.Version != "9.3" || e.Device.Serial != "S1" {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestParseSkipsBadDevices(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want int
	}{
		{
			name: "missing serial",
			yaml: "cisco:\n  n9k:\n    \"9.3\":\n      - mgmt_ip: 10.0.0.1\n",
			want: 0,
		},
		{
			name: "missing mgmt ip",
			yaml: "cisco:\n  n9k:\n    \"9.3\":\n      - serial: S1\n",
			want: 0,
		},
		{
			name: "unparseable port",
			yaml: "cisco:\n  n9k:\n    \"9.3\":\n      - serial: S1\n        mgmt_ip: 10.0.0.1\n        port: ssh\n",
			want: 0,
		},
		{
			name: "bad device does not poison siblings",
			yaml: "cisco:\n  n9k:\n    \"9.3\":\n      - serial: S1\n      - serial: S2\n        mgmt_ip: 10.0.0.2\n",
			want: 1,
		},
		{
			name: "malformed model subtree skipped",
			yaml: "cisco: just-a-string\nhp:\n  \"5945\":\n    \"1.0\":\n      - serial: H1\n        mgmt_ip: 10.0.0.2\n",
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	entries, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestParseRejectsNonMappingRoot(t *testing.T) {
	if _, err := Parse([]byte("- a\n- b\n")); err == nil {
		t.Fatal("expected error for sequence root")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}

func TestLoadCredentialsLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.yaml")
	content := `credentials:
  S1:
    username: operator
    password: s1pass
  S2:
    password: s2pass
default:
  username: fallback
  password: defpass
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	creds, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}

	tests := []struct {
		serial       string
		wantUser     string
		wantPassword string
	}{
		{"S1", "operator", "s1pass"},
		{"S2", "admin", "s2pass"},
		{"UNKNOWN", "fallback", "defpass"},
	}
	for _, tt := range tests {
		cred := creds.Lookup(tt.serial)
		if cred.Username != tt.wantUser || cred.Password != tt.wantPassword {
			t.Errorf("Lookup(%s) = %+v, want %s/%s", tt.serial, cred, tt.wantUser, tt.wantPassword)
		}
	}
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	creds, err := LoadCredentials(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing credentials file should not error: %v", err)
	}
	cred := creds.Lookup("S1")
	if cred.Username != "admin" || cred.Password != "" {
		t.Errorf("empty store lookup = %+v", cred)
	}
}
