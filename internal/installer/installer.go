// Package installer implements the install/uninstall ordering from spec.md
// §4.9: provision storage, create the installed marker, write and start the
// unit; invert on uninstall. Grounded on the teacher's Boxer, which also
// composes a provisioner and a persistence layer behind one ordered
// lifecycle method (NewSandbox/Cleanup), generalized here to the
// storage→marker→unit sequence spec.md requires.
package installer

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trunkctl/trunk/internal/agent"
	"github.com/trunkctl/trunk/internal/compiler"
	"github.com/trunkctl/trunk/internal/model"
	"github.com/trunkctl/trunk/internal/registry"
	"github.com/trunkctl/trunk/internal/svcctl"
	"github.com/trunkctl/trunk/internal/trunkerr"
)

// Config names the external paths and binaries the installer threads
// through the generated unit file's re-entry invocation (spec.md §6).
type Config struct {
	Pool            string // ZFS pool all package datasets live under
	VolumeRootBase  string // e.g. "/trunk/volumes"; per-package root is VolumeRootBase/<title>
	SystemdRoot     string // e.g. "/etc/systemd/system"
	RegistryRoot    string // passed to the re-entry invocation's -r flag
	NodeAgentSocket string // passed to the re-entry invocation's -b flag
	CharonBinary    string // e.g. "/usr/sbin/charon"
}

// Installer composes the registry, the compiler, and a node-agent handle to
// carry out installs and uninstalls.
type Installer struct {
	registry *registry.Registry
	agent    agent.NodeAgent
	cfg      Config
}

// New returns an Installer using reg for package metadata and ag for storage
// and service operations (either a Local agent in-process or a Client
// talking to buckle over its socket).
func New(reg *registry.Registry, ag agent.NodeAgent, cfg Config) *Installer {
	return &Installer{registry: reg, agent: ag, cfg: cfg}
}

func (i *Installer) pkgDataset(title model.Title) string {
	return title.String()
}

func (i *Installer) volumeRoot(title model.Title) string {
	return filepath.Join(i.cfg.VolumeRootBase, title.String())
}

// Install compiles name/version, provisions its storage, creates the
// installed marker, then writes and starts its unit, in the order spec.md
// §4.9 requires: storage exists before the marker, and the marker exists
// before the unit starts.
func (i *Installer) Install(ctx context.Context, name, version string) error {
	if err := i.registry.Validate(name, version); err != nil {
		return err
	}
	src, err := i.registry.Load(name, version)
	if err != nil {
		return err
	}
	globals, err := i.registry.LoadGlobals(name)
	if err != nil {
		return err
	}
	responses, err := i.registry.LoadResponses(name)
	if err != nil {
		return err
	}

	pkg, err := compiler.Compile(src, compiler.Context{Globals: globals, Responses: compiler.ResponsesMap(responses)})
	if err != nil {
		return err
	}

	if err := i.provisionStorage(ctx, pkg); err != nil {
		return err
	}

	if err := i.registry.MarkInstalled(name, version); err != nil {
		return err
	}

	return i.writeAndStartUnit(ctx, pkg)
}

// provisionStorage creates the package's root dataset, then one dataset or
// volume per declared storage entry, per spec.md §4.9 step 2. Per-volume
// provisioning fans out concurrently (spec.md §5 permits cross-package
// concurrency; within a package, the teacher's errgroup-based provisioner
// shape still applies once the root dataset exists).
func (i *Installer) provisionStorage(ctx context.Context, pkg model.CompiledPackage) error {
	root := i.pkgDataset(pkg.Title)
	if err := i.agent.ZFSCreateDataset(ctx, i.cfg.Pool, root, map[string]string{
		"mountpoint": i.volumeRoot(pkg.Title),
	}); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, v := range pkg.Storage.Volumes {
		v := v
		g.Go(func() error { return i.provisionVolume(gctx, pkg.Title, v) })
	}
	return g.Wait()
}

func (i *Installer) provisionVolume(ctx context.Context, title model.Title, v model.CompiledVolume) error {
	name := i.pkgDataset(title) + "/" + v.Name
	if v.HasMount {
		options := map[string]string{"mountpoint": filepath.Join(i.volumeRoot(title), v.Name)}
		if v.SizeBytes > 0 {
			options["quota"] = strconv.FormatUint(v.SizeBytes, 10)
		}
		return i.agent.ZFSCreateDataset(ctx, i.cfg.Pool, name, options)
	}
	return i.agent.ZFSCreateVolume(ctx, i.cfg.Pool, name, v.SizeBytes, nil)
}

// writeAndStartUnit writes the systemd unit (rewriting, not appending, on
// repeated installs per SPEC_FULL.md's idempotent-rewrite note), reloads the
// manager, loads the unit, and starts it.
func (i *Installer) writeAndStartUnit(ctx context.Context, pkg model.CompiledPackage) error {
	path := i.unitPath(pkg.Title)
	content := renderUnit(i.cfg, pkg)
	if err := writeUnitFile(path, content); err != nil {
		return err
	}

	if err := i.agent.ServiceReload(ctx); err != nil {
		return err
	}
	objectPath, err := i.agent.ServiceLoadUnit(ctx, unitName(pkg.Title))
	if err != nil {
		return err
	}
	return i.agent.ServiceStart(ctx, objectPath)
}

func (i *Installer) unitPath(title model.Title) string {
	return filepath.Join(i.cfg.SystemdRoot, unitName(title))
}

func unitName(title model.Title) string { return title.String() + ".service" }

// pollInterval is the uninstall wait-loop cadence from spec.md §4.9.
const pollInterval = 100 * time.Millisecond

var terminalLastRunStates = map[svcctl.LastRunState]bool{
	svcctl.LastRunDead:   true,
	svcctl.LastRunFailed: true,
	svcctl.LastRunExited: true,
}

// Uninstall stops name/version's unit, waits for it to reach a terminal
// state, optionally purges its storage, then removes the installed marker
// and unit file, per spec.md §4.9's inverted ordering: the unit is confirmed
// non-active before storage is touched.
func (i *Installer) Uninstall(ctx context.Context, name, version string, purge bool) error {
	title := model.Title{Name: name, Version: version}
	objectPath, err := i.agent.ServiceLoadUnit(ctx, unitName(title))
	if err == nil {
		if err := i.agent.ServiceStop(ctx, objectPath); err != nil {
			return err
		}
		if err := i.waitForStop(ctx, objectPath); err != nil {
			return err
		}
	}

	if purge {
		if err := i.purgeStorage(ctx, title); err != nil {
			return err
		}
	}

	if err := i.registry.ClearInstalled(name, version); err != nil {
		return err
	}

	return i.removeUnit(ctx, title)
}

// waitForStop polls the unit's status every 100ms until its last-run state
// is terminal or the unit becomes unknown (load state unloaded).
func (i *Installer) waitForStop(ctx context.Context, objectPath string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		status, err := i.agent.ServiceStatus(ctx, objectPath)
		if err != nil {
			return err
		}
		if status.Load == svcctl.LoadUnloaded || terminalLastRunStates[status.LastRun] {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (i *Installer) purgeStorage(ctx context.Context, title model.Title) error {
	src, err := i.registry.Load(title.Name, title.Version)
	if err != nil {
		return err
	}
	globals, err := i.registry.LoadGlobals(title.Name)
	if err != nil {
		return err
	}
	responses, err := i.registry.LoadResponses(title.Name)
	if err != nil {
		return err
	}
	pkg, err := compiler.Compile(src, compiler.Context{Globals: globals, Responses: compiler.ResponsesMap(responses)})
	if err != nil {
		return err
	}

	for _, v := range pkg.Storage.Volumes {
		name := i.pkgDataset(title) + "/" + v.Name
		if err := i.agent.ZFSDestroy(ctx, i.cfg.Pool, name); err != nil {
			return err
		}
	}
	return i.agent.ZFSDestroy(ctx, i.cfg.Pool, i.pkgDataset(title))
}

func (i *Installer) removeUnit(ctx context.Context, title model.Title) error {
	if err := removeUnitFile(i.unitPath(title)); err != nil {
		return err
	}
	return i.agent.ServiceReload(ctx)
}
