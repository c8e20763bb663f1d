package voldap

import (
	"github.com/voldap/voldap/internal/directory"
	"github.com/voldap/voldap/internal/ldif"
	"github.com/voldap/voldap/internal/paths"
	"github.com/voldap/voldap/internal/slapd"
)

// Error taxonomy. All errors returned by this package wrap one of these
// sentinels; match with errors.Is.
var (
	// No known OpenLDAP installation layout matched. Fatal, surfaced by
	// the first Start.
	ErrEnvironment = paths.ErrEnvironment

	// A schema reference could not be resolved during materialization.
	ErrSchema = slapd.ErrSchema

	// The server process exited or never became ready within the startup
	// budget. The instance is left Stopped; Start may be called again.
	ErrStartup = slapd.ErrStartup

	// A bounded Wait elapsed with the process still running.
	ErrTimeout = slapd.ErrTimeout

	// Operation requested in a state that forbids it.
	ErrInvalidState = directory.ErrInvalidState

	// Get miss: the DN does not exist. Recoverable.
	ErrNotFound = directory.ErrNotFound

	// The server stopped answering even though it was believed running.
	ErrNotRunning = directory.ErrNotRunning

	// Malformed LDIF input.
	ErrLDIF = ldif.ErrInvalid
)
