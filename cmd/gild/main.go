// Command gild is Trunk's API gateway: a CBOR+JWT HTTP front door over the
// package manager's install operation, with per-request audit
// logging (spec.md §6, SPEC_FULL.md §7). Grounded on cmd/sand/main.go's
// kong.Parse entrypoint and mux_server.go's http.Server-over-listener
// shape, here over TCP instead of a Unix socket since gild is the
// network-facing tier.
package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/alecthomas/kong"

	"github.com/trunkctl/trunk/internal/agent"
	"github.com/trunkctl/trunk/internal/config"
	"github.com/trunkctl/trunk/internal/gateway"
	"github.com/trunkctl/trunk/internal/installer"
	"github.com/trunkctl/trunk/internal/obs"
	"github.com/trunkctl/trunk/internal/registry"
)

func main() {
	var cli config.GildCLI
	kong.Parse(&cli, kong.Description("Trunk API gateway: CBOR+JWT front door over package install."))

	obs.InitSlog(obs.LogConfig{Path: cli.LogFile, Level: cli.LogLevel})

	store, err := gateway.Open(cli.DatabasePath)
	if err != nil {
		slog.Error("gild failed to open gateway database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	verifier := gateway.NewTokenVerifier(cli.JWTSigningKey, store)
	reg := registry.New(cli.RegistryRoot)
	node := agent.NewClient(cli.NodeAgentSocket)
	inst := installer.New(reg, node, cli.InstallerConfig())

	mux := gateway.NewMux(store, verifier, reg, inst)

	slog.Info("gild listening", "addr", cli.ListenAddr)
	if err := http.ListenAndServe(cli.ListenAddr, mux); err != nil {
		slog.Error("gild exited", "error", err)
		os.Exit(1)
	}
}
