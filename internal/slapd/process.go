package slapd

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/voldap/voldap/internal/paths"
)

const (

	// Interval between readiness probes during startup.
	probeInterval = 250 * time.Millisecond

	// Dial timeout for a single readiness probe.
	probeTimeout = time.Second

	// Bytes of captured output included in startup failure diagnostics.
	logTailBytes = 2048
)

// A supervised slapd child process.
type Process struct {
	cmd     *exec.Cmd
	uri     string        // Listener URI the child was started with.
	logPath string        // File capturing the child's stdout and stderr.
	done    chan struct{} // Closed once the child has been reaped.
	waitErr error         // Result of the reap; valid after done is closed.
}

// Starts slapd in the foreground against a materialized configuration.
//
// The child listens on uri and logs at the given debug level. Its combined
// stdout and stderr are redirected to a log file inside the working
// directory, keeping the test runner's output clean while preserving
// diagnostics. The child is reaped by a background goroutine as soon as it
// exits, so it can never linger as a zombie.
func Launch(slapdBin, confPath, uri string, debugLevel int, workdir string) (*Process, error) {
	logPath := filepath.Join(workdir, LogFile)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, paths.DefaultFileMode)
	if err != nil {
		return nil, fmt.Errorf("%w: opening log file: %v", ErrStartup, err)
	}

	cmd := exec.Command(slapdBin,
		"-f", confPath,
		"-h", uri,
		"-d", strconv.Itoa(debugLevel),
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("%w: spawning %s: %v", ErrStartup, slapdBin, err)
	}

	p := &Process{
		cmd:     cmd,
		uri:     uri,
		logPath: logPath,
		done:    make(chan struct{}),
	}

	go func() {
		p.waitErr = cmd.Wait()
		logFile.Close()
		close(p.done)
	}()

	slog.Debug("slapd started", "pid", cmd.Process.Pid, "uri", uri)

	return p, nil
}

// PID of the child process.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Whether the child process is still running.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
	}
	return p.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// Blocks until the server answers an LDAP probe on its port.
//
// The port is polled at a fixed interval within the given budget. A
// connection refusal means the listener is not up yet and polling
// continues; any LDAP-level response, including an error result, counts as
// ready. If the child exits before answering, the wait fails immediately
// with [ErrStartup] carrying the tail of the captured output.
func (p *Process) AwaitReady(maxDelay time.Duration) error {
	deadline := time.Now().Add(maxDelay)

	for {
		if !p.Alive() {
			return fmt.Errorf("%w: slapd exited before listening: %s", ErrStartup, p.LogTail())
		}

		if err := probe(p.uri); err == nil {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: slapd not responding within %s", ErrStartup, maxDelay)
		}
		time.Sleep(probeInterval)
	}
}

// Issues a minimal protocol-level request against the listener: an
// anonymous base-scope read of the root DSE.
func probe(uri string) error {
	conn, err := ldap.DialURL(uri, ldap.DialWithDialer(&net.Dialer{Timeout: probeTimeout}))
	if err != nil {
		return err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		"", ldap.ScopeBaseObject, ldap.NeverDerefAliases,
		1, 5, false,
		"(objectClass=*)",
		[]string{"namingContexts"},
		nil,
	)
	_, err = conn.Search(req)
	return err
}

// Blocks until the child exits on its own.
//
// A non-positive timeout waits indefinitely. Returns [ErrTimeout] when the
// child is still running once the timeout elapses.
func (p *Process) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-p.done
		return nil
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: slapd still running after %s", ErrTimeout, timeout)
	}
}

// Stops the child process.
//
// Sends SIGTERM and waits up to the grace period for the child to exit;
// a child that overstays is killed outright. The child is reaped in either
// case. Terminating an already-exited process is a no-op.
func (p *Process) Terminate(grace time.Duration) {
	select {
	case <-p.done:
		return
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		slog.Warn("failed to signal slapd", "pid", p.PID(), "error", err)
	}

	select {
	case <-p.done:
	case <-time.After(grace):
		slog.Warn("slapd did not exit in time, killing", "pid", p.PID(), "grace", grace)
		p.cmd.Process.Kill()
		<-p.done
	}
}

// Returns the tail of the child's captured output for diagnostics.
func (p *Process) LogTail() string {
	f, err := os.Open(p.logPath)
	if err != nil {
		return "(no captured output)"
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "(no captured output)"
	}

	offset := info.Size() - logTailBytes
	if offset < 0 {
		offset = 0
	}

	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return "(no captured output)"
	}
	return string(buf)
}

// Validates a materialized configuration with slaptest when available.
//
// A missing slaptest binary skips validation silently; a failing check is
// an [ErrStartup] carrying the tool's output.
func Validate(slaptestBin, confPath string) error {
	if slaptestBin == "" {
		return nil
	}

	out, err := exec.Command(slaptestBin, "-f", confPath, "-u").CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: configuration rejected by slaptest: %s", ErrStartup, out)
	}
	return nil
}
