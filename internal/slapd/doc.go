// Package slapd materializes configuration for and supervises a slapd
// child process.
//
// [Materialize] turns a [Config] into an on-disk working directory: a
// data directory for the mdb backend, a run directory for the PID and
// args files, and a generated slapd.conf carrying schema includes, the
// suffix, the root DN and a salted hash of the root password. The data
// directory is wiped on every call, so re-materializing an existing
// working directory yields an empty database.
//
// [Launch] starts slapd in the foreground against a materialized
// configuration with its output captured to a log file inside the working
// directory. The returned [Process] tracks the child: [Process.AwaitReady]
// polls the listening port with an LDAP-level probe until the server
// answers or the startup budget is spent, [Process.Alive] checks liveness,
// and [Process.Terminate] shuts the child down, escalating from SIGTERM to
// SIGKILL after a grace period, and always reaps it.
package slapd
