package slapd

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Writes an executable shell script standing in for the slapd binary.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-slapd")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

// Picks a TCP port that nothing is listening on.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testURI(t *testing.T) string {
	return fmt.Sprintf("ldap://localhost:%d", freePort(t))
}

func TestLaunchAndTerminate(t *testing.T) {
	bin := fakeBinary(t, "sleep 60\n")
	workdir := t.TempDir()

	p, err := Launch(bin, "unused.conf", testURI(t), 0, workdir)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	if !p.Alive() {
		t.Fatal("process not alive after launch")
	}
	if p.PID() <= 0 {
		t.Fatalf("PID = %d", p.PID())
	}

	p.Terminate(2 * time.Second)

	if p.Alive() {
		t.Fatal("process alive after Terminate")
	}

	// Idempotent on an already-dead child.
	p.Terminate(time.Second)
}

func TestTerminateEscalatesToKill(t *testing.T) {
	// Ignores SIGTERM, so only SIGKILL can stop it.
	bin := fakeBinary(t, "trap '' TERM\nsleep 60\n")
	workdir := t.TempDir()

	p, err := Launch(bin, "unused.conf", testURI(t), 0, workdir)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	// Give the shell a moment to install the trap.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	p.Terminate(500 * time.Millisecond)

	if p.Alive() {
		t.Fatal("process survived SIGKILL escalation")
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("terminated after %s, expected to wait out the grace period", elapsed)
	}
}

func TestAwaitReadyFailsFastOnExit(t *testing.T) {
	bin := fakeBinary(t, "echo 'bind failed: address in use' >&2\nexit 1\n")
	workdir := t.TempDir()

	p, err := Launch(bin, "unused.conf", testURI(t), 0, workdir)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	start := time.Now()
	err = p.AwaitReady(10 * time.Second)
	if !errors.Is(err, ErrStartup) {
		t.Fatalf("err = %v, want ErrStartup", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("AwaitReady kept polling a dead process for %s", elapsed)
	}
	if !strings.Contains(err.Error(), "address in use") {
		t.Errorf("error %q does not carry captured stderr", err)
	}
}

func TestAwaitReadyTimesOut(t *testing.T) {
	// Alive but never listens.
	bin := fakeBinary(t, "sleep 60\n")
	workdir := t.TempDir()

	p, err := Launch(bin, "unused.conf", testURI(t), 0, workdir)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer p.Terminate(time.Second)

	err = p.AwaitReady(600 * time.Millisecond)
	if !errors.Is(err, ErrStartup) {
		t.Fatalf("err = %v, want ErrStartup", err)
	}
	if !strings.Contains(err.Error(), "not responding") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWait(t *testing.T) {
	bin := fakeBinary(t, "sleep 0.2\n")
	workdir := t.TempDir()

	p, err := Launch(bin, "unused.conf", testURI(t), 0, workdir)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	if err := p.Wait(5 * time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if p.Alive() {
		t.Fatal("process alive after Wait returned")
	}
}

func TestWaitTimeout(t *testing.T) {
	bin := fakeBinary(t, "sleep 60\n")
	workdir := t.TempDir()

	p, err := Launch(bin, "unused.conf", testURI(t), 0, workdir)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer p.Terminate(time.Second)

	if err := p.Wait(100 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestLogCapture(t *testing.T) {
	bin := fakeBinary(t, "echo 'starting up'\necho 'on stderr' >&2\nexit 0\n")
	workdir := t.TempDir()

	p, err := Launch(bin, "unused.conf", testURI(t), 0, workdir)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := p.Wait(5 * time.Second); err != nil {
		t.Fatal(err)
	}

	tail := p.LogTail()
	if !strings.Contains(tail, "starting up") || !strings.Contains(tail, "on stderr") {
		t.Errorf("log tail missing captured output: %q", tail)
	}

	if _, err := os.Stat(filepath.Join(workdir, LogFile)); err != nil {
		t.Errorf("log file not in workdir: %v", err)
	}
}

func TestValidateMissingBinary(t *testing.T) {
	if err := Validate("", "whatever.conf"); err != nil {
		t.Fatalf("Validate with no binary: %v", err)
	}
}

func TestValidateRejectedConfig(t *testing.T) {
	bin := fakeBinary(t, "echo 'bad config'\nexit 1\n")

	err := Validate(bin, "whatever.conf")
	if !errors.Is(err, ErrStartup) {
		t.Fatalf("err = %v, want ErrStartup", err)
	}
	if !strings.Contains(err.Error(), "bad config") {
		t.Errorf("error %q missing tool output", err)
	}
}
