package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/voldap/voldap/internal/directory"
	"github.com/voldap/voldap/internal/slapd"
)

// How long one /control/wait request blocks before answering 504.
const waitSlice = 5 * time.Second

// Serves the control API for one directory instance.
type Server struct {
	addr     string             // Requested listen address.
	inst     directory.Instance // The instance being controlled.
	listener net.Listener       // Listener for incoming connections.
	httpSrv  *http.Server       // Underlying HTTP server.
}

// Creates a control server for the instance.
//
// The listener is not opened until [Server.Start] is called.
func New(addr string, inst directory.Instance) *Server {
	return &Server{addr: addr, inst: inst}
}

// Opens the listener and begins serving requests in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: listening on %s: %v", ErrControl, s.addr, err)
	}

	s.listener = listener
	s.httpSrv = &http.Server{Handler: s.handler()}

	slog.Info("control server listening", "addr", listener.Addr())

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("control server failed", "error", err)
		}
	}()
	return nil
}

// The address the server is actually listening on. Valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shuts down the control server. Safe to call when never started.
func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Close()
}

// Builds the route table.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /control/start", s.handleStart)
	mux.HandleFunc("POST /control/start/{$}", s.handleStart)
	mux.HandleFunc("POST /control/stop", s.handleStop)
	mux.HandleFunc("POST /control/stop/{$}", s.handleStop)
	mux.HandleFunc("POST /control/reset", s.handleReset)
	mux.HandleFunc("POST /control/reset/{$}", s.handleReset)
	mux.HandleFunc("GET /control/wait", s.handleWait)
	mux.HandleFunc("GET /control/wait/{$}", s.handleWait)
	mux.HandleFunc("POST /entry", s.handleAdd)
	mux.HandleFunc("POST /entry/{$}", s.handleAdd)
	mux.HandleFunc("GET /entry/{dn...}", s.handleGet)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("GET /config/{$}", s.handleConfig)

	return mux
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.inst.Start(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.inst.Stop(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.inst.Reset(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Blocks for one wait slice; answers 504 while the process is still
// running so clients can poll, 204 once it has exited.
func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	err := s.inst.Wait(waitSlice)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, slapd.ErrTimeout):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Adds entries from an LDIF request body.
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.inst.AddLDIF(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Fetches one entry as LDIF.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	dn := r.PathValue("dn")

	data, err := s.inst.GetLDIF(dn)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "text/ldif")
		w.Write(data)
	}
}

// Reports the instance's connection parameters as JSON.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.inst.Info()); err != nil {
		slog.Error("encoding config response failed", "error", err)
	}
}
