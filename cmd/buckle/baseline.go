package main

import (
	"context"

	"github.com/trunkctl/trunk/internal/migration"
	"github.com/trunkctl/trunk/internal/shim"
)

// declaredBaseline is the set of migrations buckle runs once at startup to
// reach spec.md §2's declared baseline, grounded on
// original_source/buckle/src/migration/plans.rs's prometheus/grafana/
// node_exporter migration sets (themselves four-step check/install/
// configure/restart chains built with build_migration_set!). Each step here
// is a Migration rather than a Rust closure-state chain: each -pull step
// pulls an image, and each -run step starts its container and post-checks
// that the runtime can inspect it.
func declaredBaseline(runtime string) []migration.Migration {
	return []migration.Migration{
		{
			Name: "prometheus-pull",
			Run: func(ctx context.Context) error {
				_, err := shim.Run(ctx, runtime, "pull", "quay.io/prometheus/prometheus")
				return err
			},
		},
		{
			Name:         "prometheus-run",
			Dependencies: []string{"prometheus-pull"},
			PostCheck: func(ctx context.Context) error {
				_, err := shim.Run(ctx, runtime, "container", "inspect", "trunk-prometheus")
				return err
			},
			Run: func(ctx context.Context) error {
				_, err := shim.Run(ctx, runtime, "run", "-d", "--name", "trunk-prometheus",
					"--network", "host", "quay.io/prometheus/prometheus")
				return err
			},
		},
		{
			Name:         "grafana-pull",
			Dependencies: []string{"prometheus-run"},
			Run: func(ctx context.Context) error {
				_, err := shim.Run(ctx, runtime, "pull", "docker.io/grafana/grafana")
				return err
			},
		},
		{
			Name:         "grafana-run",
			Dependencies: []string{"grafana-pull"},
			PostCheck: func(ctx context.Context) error {
				_, err := shim.Run(ctx, runtime, "container", "inspect", "trunk-grafana")
				return err
			},
			Run: func(ctx context.Context) error {
				_, err := shim.Run(ctx, runtime, "run", "-d", "--name", "trunk-grafana",
					"--network", "host", "docker.io/grafana/grafana")
				return err
			},
		},
		{
			Name:         "node-exporter-pull",
			Dependencies: []string{"prometheus-run"},
			Run: func(ctx context.Context) error {
				_, err := shim.Run(ctx, runtime, "pull", "quay.io/prometheus/node-exporter")
				return err
			},
		},
		{
			Name:         "node-exporter-run",
			Dependencies: []string{"node-exporter-pull"},
			PostCheck: func(ctx context.Context) error {
				_, err := shim.Run(ctx, runtime, "container", "inspect", "trunk-node-exporter")
				return err
			},
			Run: func(ctx context.Context) error {
				_, err := shim.Run(ctx, runtime, "run", "-d", "--name", "trunk-node-exporter",
					"--network", "host", "--pid", "host", "quay.io/prometheus/node-exporter")
				return err
			},
		},
	}
}

// runBaseline drives the declared baseline to completion: one Execute call
// per pending migration, then one ExecuteFailed sweep for anything that
// didn't succeed the first time (e.g. a transient registry pull failure).
// A failure here is logged, not fatal — buckle still serves the node-agent
// socket even if the observability stack isn't up yet, and the next start
// resumes from the persisted cursor.
func runBaseline(ctx context.Context, root, runtime string) error {
	engine, err := migration.New(root, declaredBaseline(runtime))
	if err != nil {
		return err
	}
	for engine.MoreMigrations() {
		// A failed step is recorded in the engine's failed set and retried
		// by the ExecuteFailed sweep below.
		engine.Execute(ctx)
	}
	return engine.ExecuteFailed(ctx)
}
