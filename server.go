package voldap

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/voldap/voldap/internal/directory"
	"github.com/voldap/voldap/internal/ldif"
	"github.com/voldap/voldap/internal/paths"
	"github.com/voldap/voldap/internal/slapd"
)

// Lifecycle state of a server instance.
type State int

const (
	NotStarted State = iota
	Starting
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Dial timeout for data-plane connections.
const dialTimeout = 5 * time.Second

// A disposable LDAP server instance.
//
// A Server wraps one slapd child process, its working directory, and its
// generated configuration. It is not safe for concurrent use; test code
// drives it sequentially.
type Server struct {
	cfg     Config
	state   State
	env     *paths.OpenLDAP
	workdir string
	proc    *slapd.Process
}

// Creates a server instance from the given options.
//
// Defaults are applied and missing credentials generated here, so the
// admin password and the chosen port are readable before Start. The host
// environment is not probed until the first Start call.
func New(cfg Config) (*Server, error) {
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &Server{cfg: cfg}, nil
}

// The ldap:// URI of the listener.
func (s *Server) URI() string {
	return fmt.Sprintf("ldap://%s:%d", s.cfg.Host, s.cfg.Port)
}

// The listening TCP port.
func (s *Server) Port() int { return s.cfg.Port }

// The administrator DN.
func (s *Server) RootDN() string { return s.cfg.RootDN }

// The administrator password.
func (s *Server) RootPW() string { return s.cfg.RootPW }

// The root DN of the directory tree.
func (s *Server) Suffix() string { return s.cfg.Suffix }

// Current lifecycle state.
func (s *Server) State() State { return s.state }

// PID of the child process, or zero when none is running.
func (s *Server) PID() int {
	if s.proc == nil {
		return 0
	}
	return s.proc.PID()
}

// Connection parameters for control-server clients.
func (s *Server) Info() directory.Info {
	return directory.Info{
		Suffix: s.cfg.Suffix,
		RootDN: s.cfg.RootDN,
		RootPW: s.cfg.RootPW,
		Host:   s.cfg.Host,
		Port:   s.cfg.Port,
		URI:    s.URI(),
	}
}

// Starts the server, or resets it when already running.
//
// From NotStarted or Stopped this performs the full sequence: environment
// discovery, working-directory materialization, process launch, readiness
// wait, and initial-data load. On a Running instance whose process is
// still alive, only the data is cleared and reloaded, keeping the same
// process and port. A Running instance whose process died is stopped and
// relaunched from scratch.
//
// On failure the instance is left Stopped so the caller can inspect the
// error and try again.
func (s *Server) Start() error {
	slog.Info("starting LDAP server", "suffix", s.cfg.Suffix, "port", s.cfg.Port)

	if s.state == Running {
		if s.proc != nil && s.proc.Alive() {
			slog.Debug("already running, resetting data", "pid", s.proc.PID())
			if err := s.Reset(); err != nil {
				s.Stop()
				return err
			}
			return nil
		}
		slog.Warn("slapd process died unexpectedly, relaunching")
		s.Stop()
	}

	if err := s.launch(); err != nil {
		return err
	}

	s.state = Running
	register(s)

	if err := s.populate(); err != nil {
		s.Stop()
		return err
	}
	return nil
}

// Performs the full cold-start sequence up to a ready, empty server.
func (s *Server) launch() error {
	s.state = Starting

	if s.env == nil {
		env, err := paths.Discover()
		if err != nil {
			s.state = Stopped
			return err
		}
		s.env = env
	}

	base := paths.Workdirs()
	workdir := filepath.Join(base, uuid.NewString())
	if err := os.MkdirAll(workdir, paths.DefaultDirMode); err != nil {
		s.state = Stopped
		return fmt.Errorf("%w: creating working directory: %v", ErrStartup, err)
	}
	slog.Debug("materializing working directory", "workdir", workdir)

	conf, err := slapd.Materialize(slapd.Config{
		SchemaDir:          s.env.SchemaDir,
		ModuleDir:          s.env.ModuleDir,
		Suffix:             s.cfg.Suffix,
		RootDN:             s.cfg.RootDN,
		RootPW:             s.cfg.RootPW,
		Schemas:            s.cfg.Schemas,
		SkipMissingSchemas: s.cfg.SkipMissingSchemas,
		DebugLevel:         s.cfg.DebugLevel,
	}, workdir)
	if err != nil {
		s.discard(workdir)
		return err
	}

	if err := slapd.Validate(s.env.Slaptest, conf); err != nil {
		s.discard(workdir)
		return err
	}

	proc, err := slapd.Launch(s.env.Slapd, conf, s.URI(), s.cfg.DebugLevel, workdir)
	if err != nil {
		s.discard(workdir)
		return err
	}

	if err := proc.AwaitReady(s.cfg.StartupTimeout); err != nil {
		proc.Terminate(s.cfg.StopGrace)
		s.discard(workdir)
		return err
	}

	s.workdir = workdir
	s.proc = proc
	return nil
}

// Removes a half-built working directory and folds state to Stopped.
func (s *Server) discard(workdir string) {
	if err := os.RemoveAll(workdir); err != nil {
		slog.Warn("failed to remove working directory", "workdir", workdir, "error", err)
	}
	s.state = Stopped
}

// Stops the server process and removes its working directory.
//
// Termination escalates from SIGTERM to SIGKILL after the configured
// grace period. Cleanup failures are logged, never returned, so calling
// Stop from teardown paths cannot mask an earlier test failure. Stopping
// an instance that is not running is a no-op.
func (s *Server) Stop() error {
	if s.state != Running && s.state != Starting {
		return nil
	}
	s.state = Stopping
	slog.Info("shutting down LDAP server", "port", s.cfg.Port)

	if s.proc != nil {
		s.proc.Terminate(s.cfg.StopGrace)
		s.proc = nil
	}
	if s.workdir != "" {
		if err := os.RemoveAll(s.workdir); err != nil {
			slog.Warn("failed to remove working directory", "workdir", s.workdir, "error", err)
		}
		s.workdir = ""
	}

	unregister(s)
	s.state = Stopped
	return nil
}

// Blocks until the server process exits on its own.
//
// A non-positive timeout waits indefinitely; otherwise [ErrTimeout] is
// returned when the process outlives the bound.
func (s *Server) Wait(timeout time.Duration) error {
	if s.proc == nil {
		return fmt.Errorf("%w: no server process", ErrInvalidState)
	}
	return s.proc.Wait(timeout)
}

// Adds entries to the directory, in slice order.
//
// DNs may be relative to the suffix. The caller is responsible for
// ordering: a parent entry must appear before its children. Requires a
// running server.
func (s *Server) Add(entries []Entry) error {
	if err := s.requireRunning(); err != nil {
		return err
	}

	conn, err := s.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, entry := range entries {
		dn := s.normalizeDN(entry.DN)
		req := ldap.NewAddRequest(dn, nil)
		for attr, values := range entry.Attributes {
			strValues := make([]string, len(values))
			for i, v := range values {
				strValues[i] = string(v)
			}
			req.Attribute(attr, strValues)
		}
		if err := conn.Add(req); err != nil {
			return fmt.Errorf("adding %s: %w", dn, err)
		}
	}
	return nil
}

// Loads entries from an LDIF document, in document order.
func (s *Server) AddLDIF(data []byte) error {
	entries, err := ldif.Unmarshal(data)
	if err != nil {
		return err
	}
	return s.Add(entries)
}

// Fetches one entry by DN.
//
// The DN may be relative to the suffix. Returns the full attribute map
// with values as raw bytes, [ErrNotFound] when the DN does not exist, and
// [ErrNotRunning] when the server stopped answering.
func (s *Server) Get(dn string) (Attributes, error) {
	if err := s.requireRunning(); err != nil {
		return nil, err
	}

	conn, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	dn = s.normalizeDN(dn)
	req := ldap.NewSearchRequest(
		dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases,
		0, 0, false,
		"(objectClass=*)",
		nil,
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dn)
		}
		return nil, fmt.Errorf("searching %s: %w", dn, err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dn)
	}

	attrs := make(Attributes, len(result.Entries[0].Attributes))
	for _, attr := range result.Entries[0].Attributes {
		values := make([][]byte, len(attr.ByteValues))
		copy(values, attr.ByteValues)
		attrs[attr.Name] = values
	}
	return attrs, nil
}

// Fetches one entry by DN as an LDIF document.
func (s *Server) GetLDIF(dn string) ([]byte, error) {
	attrs, err := s.Get(dn)
	if err != nil {
		return nil, err
	}
	return ldif.Marshal([]Entry{{DN: s.normalizeDN(dn), Attributes: attrs}}), nil
}

// Restores the directory contents to the initial data.
//
// Everything under the suffix is deleted, children before parents, and
// the core entry plus the configured initial data are reloaded.
func (s *Server) Reset() error {
	slog.Info("resetting LDAP server data")
	if err := s.clear(); err != nil {
		return err
	}
	return s.populate()
}

// Deletes every entry under the suffix, including the suffix entry.
func (s *Server) clear() error {
	if err := s.requireRunning(); err != nil {
		return err
	}

	conn, err := s.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		s.cfg.Suffix, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, 0, false,
		"(objectClass=*)",
		[]string{"1.1"},
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil // Nothing to clear.
		}
		return fmt.Errorf("listing entries: %w", err)
	}

	dns := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		dns = append(dns, entry.DN)
	}

	// Longest DNs first, so children go before their parents.
	sort.Slice(dns, func(i, j int) bool {
		if len(dns[i]) != len(dns[j]) {
			return len(dns[i]) > len(dns[j])
		}
		return dns[i] > dns[j]
	})

	for _, dn := range dns {
		if err := conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
			return fmt.Errorf("deleting %s: %w", dn, err)
		}
	}
	return nil
}

// Loads the core suffix entry and the configured initial data.
func (s *Server) populate() error {
	if err := s.Add([]Entry{s.coreEntry()}); err != nil {
		return err
	}
	if len(s.cfg.InitialData) > 0 {
		return s.Add(s.cfg.InitialData)
	}
	return nil
}

// The entry backing the suffix itself.
func (s *Server) coreEntry() Entry {
	dc := strings.SplitN(s.cfg.Suffix, ",", 2)[0]
	dc = strings.TrimPrefix(dc, "dc=")

	return Entry{
		DN: s.cfg.Suffix,
		Attributes: map[string][][]byte{
			"objectClass": {[]byte("dcObject"), []byte("organization")},
			"dc":          {[]byte(dc)},
			"o":           {[]byte(s.cfg.Suffix)},
		},
	}
}

// Appends the suffix to DNs that do not already carry it.
func (s *Server) normalizeDN(dn string) string {
	if dn == s.cfg.Suffix || strings.HasSuffix(dn, ","+s.cfg.Suffix) {
		return dn
	}
	return dn + "," + s.cfg.Suffix
}

// Fails with [ErrInvalidState] unless the server is Running.
func (s *Server) requireRunning() error {
	if s.state != Running {
		return fmt.Errorf("%w: server is %s", ErrInvalidState, s.state)
	}
	return nil
}

// Opens a data-plane connection bound as the root DN.
func (s *Server) connect() (*ldap.Conn, error) {
	conn, err := ldap.DialURL(s.URI(), ldap.DialWithDialer(&net.Dialer{Timeout: dialTimeout}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	if err := conn.Bind(s.cfg.RootDN, s.cfg.RootPW); err != nil {
		conn.Close()
		return nil, fmt.Errorf("binding as %s: %w", s.cfg.RootDN, err)
	}
	return conn, nil
}
