package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	appName = "voldap"

	// Permission mode for instance directories, which hold credentials.
	DefaultDirMode os.FileMode = 0700

	// Permission mode for generated instance files.
	DefaultFileMode os.FileMode = 0600
)

// Directories holding schema files, by packaging convention.
var schemaDirs = []string{
	"/etc/ldap/schema",            // Debian
	"/etc/openldap/schema",        // RedHat, Gentoo
	"/usr/local/openldap/schema",  // Manual install
	"/usr/local/etc/openldap/schema", // Homebrew
}

// Directories holding the slapd binary, by packaging convention. The
// caller's PATH is appended as a last resort.
var binaryDirs = []string{
	"/usr/sbin",
	"/usr/bin",
	"/usr/lib/openldap",
	"/usr/lib64/openldap",
	"/usr/local/sbin",
	"/usr/local/bin",
	"/usr/local/libexec",
}

// Directories holding dynamically loadable backend modules. Not every
// build ships modules; back_mdb is frequently compiled in.
var moduleDirs = []string{
	"/usr/lib/ldap",           // Debian
	"/usr/lib64/openldap",     // RedHat 64-bit
	"/usr/lib/openldap",       // RedHat
	"/usr/libexec/openldap",   // Manual install
	"/usr/local/libexec/openldap",
}

// Absolute locations of the host's OpenLDAP installation.
type OpenLDAP struct {
	Slapd     string // Path to the slapd binary.
	Slaptest  string // Path to slaptest, empty when not installed.
	SchemaDir string // Directory containing core.schema.
	ModuleDir string // Directory containing loadable backend modules, empty when none found.
}

// Locates the OpenLDAP installation on this host.
//
// The slapd binary and the schema directory are required; failure to find
// either is an [ErrEnvironment] listing the attempted locations. slaptest
// and the module directory are best-effort and left empty when absent.
func Discover() (*OpenLDAP, error) {
	binDirs := append(append([]string{}, binaryDirs...), pathDirs()...)

	slapd, err := findFile("slapd", binDirs)
	if err != nil {
		return nil, err
	}

	coreSchema, err := findFile("core.schema", schemaDirs)
	if err != nil {
		return nil, err
	}

	slaptest, err := findFile("slaptest", binDirs)
	if err != nil {
		slaptest = ""
	}

	return &OpenLDAP{
		Slapd:     slapd,
		Slaptest:  slaptest,
		SchemaDir: filepath.Dir(coreSchema),
		ModuleDir: findDir(moduleDirs),
	}, nil
}

// Path to the base directory under which instance working directories are
// created.
//
//	Linux:   $XDG_RUNTIME_DIR/voldap or ~/.cache/voldap/run
//	macOS:   ~/Library/Caches/voldap/run
func Workdirs() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, appName)
	}
	return filepath.Join(xdg.CacheHome, appName, "run")
}

// Returns the first directory containing the named file, searching the
// candidates in order.
func findFile(name string, dirs []string) (string, error) {
	for _, dir := range dirs {
		full := filepath.Join(dir, name)
		if info, err := os.Stat(full); err == nil && info.Mode().IsRegular() {
			return full, nil
		}
	}
	return "", fmt.Errorf("%w: unable to locate %s; tried %s", ErrEnvironment, name, strings.Join(dirs, ", "))
}

// Returns the first existing directory from the candidates, or "".
func findDir(dirs []string) string {
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}

// The directories on the caller's PATH.
func pathDirs() []string {
	var dirs []string
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
