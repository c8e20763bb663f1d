package voldap

import "github.com/voldap/voldap/internal/control"

// A client for a server instance hosted by another process, reached
// through its HTTP control API. It mirrors the [Server] data surface:
// Start, Stop, Reset, Add, AddLDIF, Get, GetLDIF, Wait, plus the
// connection accessors.
type Proxy = control.Proxy

// Connects to a control server, typically one started with
// `voldap serve --control`, and fetches the remote instance's connection
// parameters.
func NewProxy(baseURL string) (*Proxy, error) {
	return control.NewProxy(baseURL)
}
