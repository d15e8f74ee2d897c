package gateway

import (
	"net/http"

	"github.com/trunkctl/trunk/internal/installer"
	"github.com/trunkctl/trunk/internal/registry"
)

// NewMux builds gild's HTTP handler: one route per gateway endpoint, each
// wrapped in Audited (writing a row to store per call) and Serve (CBOR body
// handling, auth, problem documents), grounded on the teacher's
// serveHTTP/http.ServeMux shape in mux_server.go.
func NewMux(store *Store, verifier *TokenVerifier, reg *registry.Registry, inst *installer.Installer) *http.ServeMux {
	mux := http.NewServeMux()

	install := Audited("install", store, NewInstallHandler(reg, inst))
	mux.HandleFunc("/packages/install", Serve(verifier, true, install))

	return mux
}
