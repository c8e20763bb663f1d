// Package directory holds the contract shared between the public server
// API and the control transport: the instance interface, connection
// metadata, and the data-plane error sentinels. Keeping these here lets
// the control server speak to any instance implementation without
// importing the package that wires everything together.
package directory

import (
	"errors"
	"time"
)

var (
	// Operation requested in a state that forbids it.
	ErrInvalidState = errors.New("operation invalid in current state")

	// Lookup miss: the DN does not exist.
	ErrNotFound = errors.New("entry not found")

	// The server process is not reachable.
	ErrNotRunning = errors.New("server not reachable")
)

// Connection parameters of a directory instance.
type Info struct {
	Suffix string `json:"suffix"`
	RootDN string `json:"rootdn"`
	RootPW string `json:"rootpw"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	URI    string `json:"uri"`
}

// The control surface of a directory server instance.
type Instance interface {

	// Starts the instance, or resets its data when already running.
	Start() error

	// Stops the instance and releases its resources.
	Stop() error

	// Restores the directory contents to the initial data.
	Reset() error

	// Loads entries from an LDIF document, in document order.
	AddLDIF(data []byte) error

	// Fetches one entry as an LDIF document. Returns [ErrNotFound] when
	// the DN does not exist.
	GetLDIF(dn string) ([]byte, error)

	// Blocks until the server process exits, bounded by timeout when
	// positive.
	Wait(timeout time.Duration) error

	// Returns the instance's connection parameters.
	Info() Info
}
