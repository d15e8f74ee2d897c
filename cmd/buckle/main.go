// Command buckle is Trunk's node agent: a root daemon wrapping ZFS and
// systemd control plus host telemetry, served over a Unix socket to charon
// and gild (spec.md §4.4, §6). Grounded on cmd/sand/main.go's kong.Parse
// entrypoint and mux_server.go's ServeUnix lifecycle.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/trunkctl/trunk/internal/agent"
	"github.com/trunkctl/trunk/internal/config"
	"github.com/trunkctl/trunk/internal/obs"
)

func main() {
	var cli config.BuckleCLI
	kong.Parse(&cli, kong.Description("Trunk node agent: ZFS + systemd control over a Unix socket."))

	obs.InitSlog(obs.LogConfig{Path: cli.LogFile, Level: cli.LogLevel})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	local, err := agent.NewLocal(cli.Pools, cli.HostKeyPath)
	if err != nil {
		slog.ErrorContext(ctx, "buckle failed to start", "error", err)
		os.Exit(1)
	}
	server := agent.NewServer(cli.SocketPath, local)

	if err := runBaseline(ctx, cli.MigrationRoot, cli.ContainerRuntime); err != nil {
		slog.ErrorContext(ctx, "baseline migration did not complete; continuing to serve", "error", err)
	}

	slog.InfoContext(ctx, "buckle starting", "socket", cli.SocketPath, "pools", cli.Pools)
	if err := server.ServeUnix(ctx); err != nil {
		slog.ErrorContext(ctx, "buckle exited", "error", err)
		os.Exit(1)
	}
}
