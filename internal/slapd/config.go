package slapd

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/voldap/voldap/internal/paths"
)

const (
	dataSubdir = "data"
	runSubdir  = "run"

	// File name of the generated server configuration.
	ConfFile = "slapd.conf"

	// File name for the captured stdout/stderr of the child process.
	LogFile = "slapd.log"
)

// Everything needed to generate a slapd.conf.
type Config struct {
	SchemaDir string // Directory against which bare schema names are resolved.
	ModuleDir string // Directory holding loadable backend modules, may be empty.

	Suffix string // Root DN of the directory tree.
	RootDN string // Administrator DN.
	RootPW string // Administrator password; only its hash is written out.

	Schemas            []string // Schema references: bare names or absolute paths, in include order.
	SkipMissingSchemas bool     // Skip unresolvable schema references instead of failing.

	DebugLevel int // slapd loglevel value.
}

// Builds the working directory for one server instance.
//
// Creates the data and run subdirectories, wipes any pre-existing data
// directory contents, resolves schema references, and writes the
// configuration file. Returns the path of the written slapd.conf.
func Materialize(cfg Config, workdir string) (string, error) {
	datadir := filepath.Join(workdir, dataSubdir)
	rundir := filepath.Join(workdir, runSubdir)

	if err := os.RemoveAll(datadir); err != nil {
		return "", fmt.Errorf("%w: clearing data directory: %v", ErrStartup, err)
	}
	for _, dir := range []string{datadir, rundir} {
		if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
			return "", fmt.Errorf("%w: creating %s: %v", ErrStartup, dir, err)
		}
	}

	schemas, err := resolveSchemas(cfg.Schemas, cfg.SchemaDir, cfg.SkipMissingSchemas)
	if err != nil {
		return "", err
	}

	conf := filepath.Join(workdir, ConfFile)
	content := configuration(cfg, schemas, datadir, rundir)
	if err := os.WriteFile(conf, content, paths.DefaultFileMode); err != nil {
		return "", fmt.Errorf("%w: writing %s: %v", ErrStartup, conf, err)
	}

	return conf, nil
}

// Resolves schema references to absolute paths.
//
// A reference that is already an absolute path is used as-is; a bare name
// is looked up in the schema directory. Unresolvable references fail with
// [ErrSchema] unless skipMissing is set, in which case they are dropped
// with a warning.
func resolveSchemas(schemas []string, schemaDir string, skipMissing bool) ([]string, error) {
	var resolved []string
	for _, schema := range schemas {
		path := schema
		if !filepath.IsAbs(path) {
			path = filepath.Join(schemaDir, schema)
		}

		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			resolved = append(resolved, path)
			continue
		}
		if skipMissing {
			slog.Warn("skipping missing schema", "schema", schema, "path", path)
			continue
		}
		return nil, fmt.Errorf("%w: unable to locate schema %s at %s", ErrSchema, schema, path)
	}
	return resolved, nil
}

// Renders the slapd.conf contents.
func configuration(cfg Config, schemas []string, datadir, rundir string) []byte {
	var buf bytes.Buffer

	for _, schema := range schemas {
		fmt.Fprintf(&buf, "include %s\n", quote(schema))
	}

	fmt.Fprintf(&buf, "pidfile %s\n", quote(filepath.Join(rundir, "slapd.pid")))
	fmt.Fprintf(&buf, "argsfile %s\n", quote(filepath.Join(rundir, "slapd.args")))
	fmt.Fprintf(&buf, "loglevel %d\n", cfg.DebugLevel)

	if cfg.ModuleDir != "" {
		fmt.Fprintf(&buf, "modulepath %s\n", quote(cfg.ModuleDir))
	}
	buf.WriteString("moduleload back_mdb\n")

	buf.WriteString("database mdb\n")
	fmt.Fprintf(&buf, "directory %s\n", quote(datadir))
	fmt.Fprintf(&buf, "suffix %s\n", quote(cfg.Suffix))
	fmt.Fprintf(&buf, "rootdn %s\n", quote(cfg.RootDN))
	fmt.Fprintf(&buf, "rootpw %s\n", hashPassword(cfg.RootPW))

	return buf.Bytes()
}

// Quotes a slapd.conf argument, escaping backslashes and double quotes.
func quote(arg string) string {
	arg = strings.ReplaceAll(arg, `\`, `\\`)
	arg = strings.ReplaceAll(arg, `"`, `\"`)
	return `"` + arg + `"`
}

// Produces an RFC 2307 {SSHA} hash of the password so the plaintext never
// reaches the configuration file.
func hashPassword(password string) string {
	salt := make([]byte, 8)
	rand.Read(salt)

	h := sha1.New()
	h.Write([]byte(password))
	h.Write(salt)
	digest := append(h.Sum(nil), salt...)

	return "{SSHA}" + base64.StdEncoding.EncodeToString(digest)
}
