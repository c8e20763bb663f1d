package voldap

import (
	"strings"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	srv, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if srv.Suffix() != "dc=example,dc=org" {
		t.Errorf("Suffix = %q", srv.Suffix())
	}
	if srv.RootDN() != "cn=testadmin,dc=example,dc=org" {
		t.Errorf("RootDN = %q", srv.RootDN())
	}
	if len(srv.cfg.Schemas) != 1 || srv.cfg.Schemas[0] != "core.schema" {
		t.Errorf("Schemas = %v", srv.cfg.Schemas)
	}
	if srv.cfg.Host != "localhost" {
		t.Errorf("Host = %q", srv.cfg.Host)
	}
	if srv.cfg.StartupTimeout != 15*time.Second {
		t.Errorf("StartupTimeout = %v", srv.cfg.StartupTimeout)
	}
	if srv.Port() == 0 {
		t.Error("Port = 0, want an allocated port")
	}
	if !strings.HasPrefix(srv.URI(), "ldap://localhost:") {
		t.Errorf("URI = %q", srv.URI())
	}
}

func TestConfigOverrides(t *testing.T) {
	srv, err := New(Config{
		Suffix: "dc=corp,dc=test",
		RootPW: "hunter2",
		Port:   3899,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if srv.RootDN() != "cn=testadmin,dc=corp,dc=test" {
		t.Errorf("RootDN = %q, want derived from custom suffix", srv.RootDN())
	}
	if srv.RootPW() != "hunter2" {
		t.Errorf("RootPW = %q, want the configured value", srv.RootPW())
	}
	if srv.Port() != 3899 {
		t.Errorf("Port = %d, want 3899", srv.Port())
	}
}

func TestGeneratePassword(t *testing.T) {
	a := generatePassword()
	b := generatePassword()

	if len(a) != passwordLength {
		t.Errorf("len = %d, want %d", len(a), passwordLength)
	}
	if a == b {
		t.Error("two generated passwords are identical")
	}
	for _, c := range a {
		if !strings.ContainsRune(passwordChars, c) {
			t.Errorf("unexpected character %q", c)
		}
	}
}

func TestFreePort(t *testing.T) {
	port, err := freePort("localhost")
	if err != nil {
		t.Fatalf("freePort: %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Errorf("port = %d", port)
	}
}
