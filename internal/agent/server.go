package agent

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

// Server exposes a NodeAgent over a Unix-domain socket, grounded on the
// teacher's Mux.ServeUnix/serveHTTP (net.Listen("unix", ...) plus a stdlib
// http.ServeMux). Unlike the teacher, the socket is always chmod 0600:
// buckle's control surface is root-owned and must not be group/world
// reachable.
type Server struct {
	SocketPath string
	agent      NodeAgent

	listener net.Listener
}

// NewServer returns a Server fronting agent at socketPath.
func NewServer(socketPath string, agent NodeAgent) *Server {
	return &Server{SocketPath: socketPath, agent: agent}
}

// ServeUnix binds the socket, sets 0600 permissions, and serves until ctx is
// canceled or Close is called.
func (s *Server) ServeUnix(ctx context.Context) error {
	os.Remove(s.SocketPath)

	listener, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to listen on %s", s.SocketPath)
	}
	if err := os.Chmod(s.SocketPath, 0o600); err != nil {
		listener.Close()
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to chmod %s", s.SocketPath)
	}
	s.listener = listener

	srv := &http.Server{Handler: s.routes()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()

	select {
	case <-ctx.Done():
		srv.Close()
		os.Remove(s.SocketPath)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return trunkerr.Wrap(trunkerr.KindIO, err, "node-agent server stopped")
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/host-info", s.handleHostInfo)
	mux.HandleFunc("/network/expose-port", s.handleExposePort)
	mux.HandleFunc("/zfs/list", s.handleZFSList)
	mux.HandleFunc("/zfs/stat", s.handleZFSStat)
	mux.HandleFunc("/zfs/create-dataset", s.handleZFSCreateDataset)
	mux.HandleFunc("/zfs/create-volume", s.handleZFSCreateVolume)
	mux.HandleFunc("/zfs/destroy", s.handleZFSDestroy)
	mux.HandleFunc("/zfs/rename", s.handleZFSRename)
	mux.HandleFunc("/zfs/set", s.handleZFSSet)
	mux.HandleFunc("/service/start", s.handleServiceStart)
	mux.HandleFunc("/service/stop", s.handleServiceStop)
	mux.HandleFunc("/service/reload", s.handleServiceReload)
	mux.HandleFunc("/service/load-unit", s.handleServiceLoadUnit)
	mux.HandleFunc("/service/status", s.handleServiceStatus)
	mux.HandleFunc("/service/list", s.handleServiceList)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if te, ok := err.(*trunkerr.Error); ok && te.Kind == trunkerr.KindValidation {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	result, err := s.agent.Ping(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHostInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.agent.HostInfo(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleExposePort(w http.ResponseWriter, r *http.Request) {
	var req PortForward
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	if err := s.agent.ExposePort(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type zfsPoolNameReq struct {
	Pool string `json:"pool"`
	Name string `json:"name"`
}

func (s *Server) handleZFSList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pool   string `json:"pool"`
		Filter string `json:"filter"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	listing, err := s.agent.ZFSList(r.Context(), req.Pool, req.Filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleZFSStat(w http.ResponseWriter, r *http.Request) {
	var req zfsPoolNameReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	stat, err := s.agent.ZFSStat(r.Context(), req.Pool, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stat)
}

func (s *Server) handleZFSCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pool    string            `json:"pool"`
		Name    string            `json:"name"`
		Options map[string]string `json:"options"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	if err := s.agent.ZFSCreateDataset(r.Context(), req.Pool, req.Name, req.Options); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleZFSCreateVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pool      string            `json:"pool"`
		Name      string            `json:"name"`
		SizeBytes uint64            `json:"size_bytes"`
		Options   map[string]string `json:"options"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	if err := s.agent.ZFSCreateVolume(r.Context(), req.Pool, req.Name, req.SizeBytes, req.Options); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleZFSDestroy(w http.ResponseWriter, r *http.Request) {
	var req zfsPoolNameReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	if err := s.agent.ZFSDestroy(r.Context(), req.Pool, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleZFSRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pool    string `json:"pool"`
		OldName string `json:"old_name"`
		NewName string `json:"new_name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	if err := s.agent.ZFSRename(r.Context(), req.Pool, req.OldName, req.NewName); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleZFSSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pool       string            `json:"pool"`
		Name       string            `json:"name"`
		Properties map[string]string `json:"properties"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	if err := s.agent.ZFSSet(r.Context(), req.Pool, req.Name, req.Properties); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type objectPathReq struct {
	ObjectPath string `json:"object_path"`
}

func (s *Server) handleServiceStart(w http.ResponseWriter, r *http.Request) {
	var req objectPathReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	if err := s.agent.ServiceStart(r.Context(), req.ObjectPath); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleServiceStop(w http.ResponseWriter, r *http.Request) {
	var req objectPathReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	if err := s.agent.ServiceStop(r.Context(), req.ObjectPath); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleServiceReload(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.ServiceReload(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleServiceLoadUnit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	path, err := s.agent.ServiceLoadUnit(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"object_path": path})
}

func (s *Server) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	var req objectPathReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	status, err := s.agent.ServiceStatus(r.Context(), req.ObjectPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleServiceList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter string `json:"filter"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, trunkerr.Wrap(trunkerr.KindValidation, err, "malformed request body"))
		return
	}
	units, err := s.agent.ServiceList(r.Context(), req.Filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, units)
}

// ServiceLog has no HTTP handler: journal tailing is a long-lived stream,
// better served by a dedicated connection than request/response JSON. Only
// Local streams journal entries; Client.ServiceLog always returns an error.
