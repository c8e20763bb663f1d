package voldap

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Process-wide registry of running instances. Every instance that reaches
// Running is tracked here so an interrupted test run still stops its
// slapd children and removes their working directories.
var (
	registryMu sync.Mutex
	registry   = make(map[*Server]struct{})
	hookOnce   sync.Once
)

// Tracks a running instance and installs the signal hook on first use.
func register(s *Server) {
	hookOnce.Do(installTeardownHook)

	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s] = struct{}{}
}

// Stops tracking an instance.
func unregister(s *Server) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, s)
}

// Stops every running instance.
//
// Safe to call multiple times and from teardown paths: failures are
// logged per instance and never propagated. Call this from TestMain after
// m.Run to guarantee cleanup on normal exit:
//
//	func TestMain(m *testing.M) {
//	    code := m.Run()
//	    voldap.CleanupAll()
//	    os.Exit(code)
//	}
func CleanupAll() {
	registryMu.Lock()
	servers := make([]*Server, 0, len(registry))
	for s := range registry {
		servers = append(servers, s)
	}
	registryMu.Unlock()

	for _, s := range servers {
		if err := s.Stop(); err != nil {
			slog.Warn("failed to stop instance during cleanup", "uri", s.URI(), "error", err)
		}
	}
}

// Installs a once-only signal hook that tears down all running instances
// before the process dies.
//
// After cleanup the signal's default disposition is restored and the
// signal re-raised, so the process still terminates with the expected
// status for its parent.
func installTeardownHook() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigs
		slog.Info("signal received, stopping LDAP instances", "signal", sig)
		CleanupAll()

		signal.Reset(sig)
		if s, ok := sig.(syscall.Signal); ok {
			syscall.Kill(os.Getpid(), s)
		}
	}()
}
