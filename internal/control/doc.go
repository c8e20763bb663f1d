// Package control exposes a directory instance over HTTP and provides the
// matching client.
//
// The [Server] wraps any [directory.Instance] with a small REST surface:
//
//	POST /control/start   start or reset the instance
//	POST /control/stop    stop the instance
//	POST /control/reset   restore the initial data
//	GET  /control/wait    block briefly; 504 while the process lives
//	POST /entry           add entries from an LDIF body
//	GET  /entry/{dn}      fetch one entry as LDIF, 404 on a miss
//	GET  /config          connection parameters as JSON
//
// [Proxy] implements the same instance surface as a client of that API,
// so a test process can drive a server hosted by another process exactly
// like a local one.
package control
