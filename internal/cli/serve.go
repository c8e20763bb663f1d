package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/voldap/voldap"
	"github.com/voldap/voldap/internal/control"
)

// Represents the 'voldap serve' command.
type ServeCmd struct {
	Host               string   `help:"Hostname to listen on." env:"VOLDAP_HOST" placeholder:"HOST"`
	Port               int      `short:"p" help:"TCP port to listen on (0 picks a free port)." env:"VOLDAP_PORT"`
	Suffix             string   `help:"Directory suffix." env:"VOLDAP_SUFFIX" placeholder:"DN"`
	RootDN             string   `name:"rootdn" help:"Administrator DN." env:"VOLDAP_ROOTDN" placeholder:"DN"`
	RootPW             string   `name:"rootpw" help:"Administrator password (generated when empty)." env:"VOLDAP_ROOTPW"`
	Schema             []string `help:"Schema to load, by name or absolute path." env:"VOLDAP_SCHEMA" placeholder:"SCHEMA"`
	SkipMissingSchemas bool     `help:"Skip schemas that cannot be found instead of failing."`
	DebugLevel         int      `help:"slapd debug level." env:"VOLDAP_DEBUG_LEVEL" placeholder:"N"`
	Initial            string   `short:"i" help:"LDIF file loaded after startup." env:"VOLDAP_INITIAL" type:"existingfile" placeholder:"FILE"`
	Control            string   `short:"c" help:"Expose the HTTP control API on this address." env:"VOLDAP_CONTROL" placeholder:"ADDR"`
}

// Executes the serve command.
//
// Spawns a slapd instance, prints its connection parameters, and blocks
// until the context is cancelled (e.g. via SIGINT or SIGTERM) or the
// process exits on its own.
func (c *ServeCmd) Run(ctx context.Context) error {
	cfg := voldap.Config{
		Host:               c.Host,
		Port:               c.Port,
		Suffix:             c.Suffix,
		RootDN:             c.RootDN,
		RootPW:             c.RootPW,
		Schemas:            c.Schema,
		SkipMissingSchemas: c.SkipMissingSchemas,
		DebugLevel:         c.DebugLevel,
	}

	if c.Initial != "" {
		data, err := os.ReadFile(c.Initial)
		if err != nil {
			return err
		}
		entries, err := voldap.Unmarshal(data)
		if err != nil {
			return err
		}
		cfg.InitialData = entries
	}

	srv, err := voldap.New(cfg)
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	fmt.Printf("uri: %s\nsuffix: %s\nrootdn: %s\nrootpw: %s\n",
		srv.URI(), srv.Suffix(), srv.RootDN(), srv.RootPW())

	if c.Control != "" {
		ctl := control.New(c.Control, srv)
		if err := ctl.Start(); err != nil {
			return err
		}
		defer ctl.Stop()
	}

	exited := make(chan error, 1)
	go func() { exited <- srv.Wait(0) }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-exited:
		slog.Warn("slapd exited", "error", err)
	}

	return srv.Stop()
}
