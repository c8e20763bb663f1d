package voldap

import "testing"

func registered(s *Server) bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	_, ok := registry[s]
	return ok
}

func TestRegistry(t *testing.T) {
	srv, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	register(srv)
	if !registered(srv) {
		t.Fatal("instance not tracked after register")
	}

	unregister(srv)
	if registered(srv) {
		t.Fatal("instance still tracked after unregister")
	}
}

func TestCleanupAll(t *testing.T) {
	srv, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Fake a running instance with no process; Stop handles the nil proc.
	srv.state = Running
	register(srv)

	CleanupAll()

	if srv.State() != Stopped {
		t.Errorf("State = %v, want Stopped", srv.State())
	}
	if registered(srv) {
		t.Error("instance still tracked after cleanup")
	}

	// A second pass over an empty registry is a no-op.
	CleanupAll()
}
