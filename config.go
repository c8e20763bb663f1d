package voldap

import (
	"crypto/rand"
	"fmt"
	"net"
	"time"

	"github.com/creasty/defaults"
	"github.com/voldap/voldap/internal/ldif"
)

// A directory entry to load into the server. The DN may be relative to
// the suffix; attribute values are raw bytes.
type Entry = ldif.Entry

// Attribute name to values, as returned by [Server.Get].
type Attributes = map[string][][]byte

// Renders entries as an LDIF document, parents before children.
func Marshal(entries []Entry) []byte {
	return ldif.Marshal(entries)
}

// Parses an LDIF document into entries.
func Unmarshal(data []byte) ([]Entry, error) {
	return ldif.Unmarshal(data)
}

// Options for a server instance. The zero value is usable: every field
// has a default or is generated.
type Config struct {

	// Root DN of the directory tree.
	Suffix string `default:"dc=example,dc=org"`

	// Administrator DN. Defaults to cn=testadmin under the suffix.
	RootDN string

	// Administrator password. Generated when empty; read it back with
	// [Server.RootPW].
	RootPW string

	// Schema references to include, in order. Bare names resolve against
	// the discovered schema directory; absolute paths are used as-is.
	Schemas []string `default:"[\"core.schema\"]"`

	// Entries loaded on every Start, in slice order. Parents must precede
	// their children.
	InitialData []Entry

	// Skip unresolvable schema references instead of failing.
	SkipMissingSchemas bool

	// Host to listen on.
	Host string `default:"localhost"`

	// TCP port to listen on. 0 picks a free port.
	Port int

	// slapd loglevel value.
	DebugLevel int

	// Budget for the server to answer its first protocol probe.
	StartupTimeout time.Duration `default:"15s"`

	// How long Stop waits after SIGTERM before killing the process.
	StopGrace time.Duration `default:"5s"`
}

// Characters used for generated passwords.
const passwordChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length of generated passwords.
const passwordLength = 20

// Fills in defaults and generated values.
//
// The root DN is derived from the suffix, the password is generated when
// absent, and a free TCP port is claimed when none was requested. The
// port claim is best-effort: another process can steal the port before
// slapd binds it, which then surfaces as a startup failure.
func (c *Config) finalize() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("applying config defaults: %w", err)
	}

	if c.RootDN == "" {
		c.RootDN = "cn=testadmin," + c.Suffix
	}
	if c.RootPW == "" {
		c.RootPW = generatePassword()
	}
	if c.Port == 0 {
		port, err := freePort(c.Host)
		if err != nil {
			return err
		}
		c.Port = port
	}

	return nil
}

// Produces a random alphanumeric password.
func generatePassword() string {
	raw := make([]byte, passwordLength)
	rand.Read(raw)

	pw := make([]byte, passwordLength)
	for i, b := range raw {
		pw[i] = passwordChars[int(b)%len(passwordChars)]
	}
	return string(pw)
}

// Asks the kernel for an unused TCP port by binding port zero and reading
// back the allocation.
func freePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("finding a free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
