package installer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/trunkctl/trunk/internal/agent"
	"github.com/trunkctl/trunk/internal/model"
	"github.com/trunkctl/trunk/internal/registry"
	"github.com/trunkctl/trunk/internal/svcctl"
	"github.com/trunkctl/trunk/internal/zfs"
)

// fakeAgent records every call in order so tests can assert the
// storage→marker→unit ordering spec.md §8 requires, and can script a
// sequence of service statuses to exercise the uninstall poll loop.
type fakeAgent struct {
	mu          sync.Mutex
	calls       []string
	statusSteps []svcctl.UnitStatus
	statusIdx   int
}

var _ agent.NodeAgent = (*fakeAgent)(nil)

func (f *fakeAgent) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeAgent) Ping(ctx context.Context) (agent.PingResult, error) {
	return agent.PingResult{}, nil
}
func (f *fakeAgent) HostInfo(ctx context.Context) (agent.HostInfo, error) {
	return agent.HostInfo{}, nil
}
func (f *fakeAgent) ExposePort(ctx context.Context, pf agent.PortForward) error { return nil }

func (f *fakeAgent) ZFSList(ctx context.Context, pool, filter string) (zfs.Listing, error) {
	return nil, nil
}
func (f *fakeAgent) ZFSStat(ctx context.Context, pool, name string) (zfs.Stat, error) {
	return zfs.Stat{}, nil
}
func (f *fakeAgent) ZFSCreateDataset(ctx context.Context, pool, name string, options map[string]string) error {
	f.record("create-dataset:" + name)
	return nil
}
func (f *fakeAgent) ZFSCreateVolume(ctx context.Context, pool, name string, sizeBytes uint64, options map[string]string) error {
	f.record("create-volume:" + name)
	return nil
}
func (f *fakeAgent) ZFSDestroy(ctx context.Context, pool, name string) error {
	f.record("destroy:" + name)
	return nil
}
func (f *fakeAgent) ZFSRename(ctx context.Context, pool, oldName, newName string) error { return nil }
func (f *fakeAgent) ZFSSet(ctx context.Context, pool, name string, properties map[string]string) error {
	return nil
}
func (f *fakeAgent) ServiceStart(ctx context.Context, objectPath string) error {
	f.record("start:" + objectPath)
	return nil
}
func (f *fakeAgent) ServiceStop(ctx context.Context, objectPath string) error {
	f.record("stop:" + objectPath)
	return nil
}
func (f *fakeAgent) ServiceReload(ctx context.Context) error {
	f.record("reload")
	return nil
}
func (f *fakeAgent) ServiceLoadUnit(ctx context.Context, name string) (string, error) {
	f.record("load-unit:" + name)
	return "/unit/" + name, nil
}
func (f *fakeAgent) ServiceStatus(ctx context.Context, objectPath string) (svcctl.UnitStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusIdx >= len(f.statusSteps) {
		return f.statusSteps[len(f.statusSteps)-1], nil
	}
	s := f.statusSteps[f.statusIdx]
	f.statusIdx++
	return s, nil
}
func (f *fakeAgent) ServiceList(ctx context.Context, filter string) ([]svcctl.Unit, error) {
	return nil, nil
}
func (f *fakeAgent) ServiceLog(ctx context.Context, unit string, count int, cursor string, dir svcctl.Direction) (<-chan svcctl.LogEntry, error) {
	return nil, nil
}

func samplePackage(t *testing.T) model.SourcePackage {
	t.Helper()
	return model.SourcePackage{
		Title:       model.Title{Name: "plex", Version: "1.0.0"},
		Description: "media server",
		Source:      model.Source{Kind: model.SourceContainer, Value: "docker://plex"},
		Storage: &model.Storage{Volumes: []model.Volume{
			{Name: "config", SizeBytes: "1073741824", Mountpoint: "/config", Recreate: "false", Private: "false"},
			{Name: "scratch", SizeBytes: "2147483648", Recreate: "false", Private: "false"},
		}},
	}
}

func setupRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	root := t.TempDir()
	reg := registry.New(root)
	pkg := samplePackage(t)
	if err := reg.Write(pkg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := reg.WriteGlobals("plex", model.Globals{}); err != nil {
		t.Fatalf("WriteGlobals: %v", err)
	}
	return reg
}

func TestInstallOrdersStorageMarkerUnit(t *testing.T) {
	reg := setupRegistry(t)
	fake := &fakeAgent{}
	cfg := Config{
		Pool:            "tank",
		VolumeRootBase:  t.TempDir(),
		SystemdRoot:     t.TempDir(),
		RegistryRoot:    reg.Root(),
		NodeAgentSocket: "/run/buckle.sock",
		CharonBinary:    "/usr/sbin/charon",
	}
	inst := New(reg, fake, cfg)

	if err := inst.Install(context.Background(), "plex", "1.0.0"); err != nil {
		t.Fatalf("Install: %v", err)
	}

	installedPath := filepath.Join(reg.Root(), "installed", "plex", "1.0.0")
	if _, err := os.Stat(installedPath); err != nil {
		t.Fatalf("expected installed marker: %v", err)
	}
	unitPath := filepath.Join(cfg.SystemdRoot, "plex-1.0.0.service")
	if _, err := os.Stat(unitPath); err != nil {
		t.Fatalf("expected unit file: %v", err)
	}

	storageDone, markerDone, startIdx := -1, -1, -1
	for idx, c := range fake.calls {
		if storageDone == -1 && (c == "create-dataset:plex-1.0.0/config" || c == "create-volume:plex-1.0.0/scratch") {
			storageDone = idx
		}
		if c == "load-unit:plex-1.0.0.service" {
			markerDone = idx
		}
		if c == "start:/unit/plex-1.0.0.service" {
			startIdx = idx
		}
	}
	if storageDone == -1 || markerDone == -1 || startIdx == -1 {
		t.Fatalf("missing expected calls: %v", fake.calls)
	}
	if !(storageDone < markerDone && markerDone < startIdx) {
		t.Errorf("expected storage before unit load before start, got order: %v", fake.calls)
	}
}

func TestUninstallWaitsForTerminalState(t *testing.T) {
	reg := setupRegistry(t)
	fake := &fakeAgent{
		statusSteps: []svcctl.UnitStatus{
			{Load: svcctl.LoadLoaded, Runtime: svcctl.RuntimeStarted, LastRun: svcctl.LastRunRunning},
			{Load: svcctl.LoadLoaded, Runtime: svcctl.RuntimeStopped, LastRun: svcctl.LastRunRunning},
			{Load: svcctl.LoadLoaded, Runtime: svcctl.RuntimeStopped, LastRun: svcctl.LastRunDead},
		},
	}
	cfg := Config{
		Pool:            "tank",
		VolumeRootBase:  t.TempDir(),
		SystemdRoot:     t.TempDir(),
		RegistryRoot:    reg.Root(),
		NodeAgentSocket: "/run/buckle.sock",
		CharonBinary:    "/usr/sbin/charon",
	}
	inst := New(reg, fake, cfg)

	if err := inst.Uninstall(context.Background(), "plex", "1.0.0", true); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}

	stopIdx, destroyIdx := -1, -1
	for idx, c := range fake.calls {
		if c == "stop:/unit/plex-1.0.0.service" {
			stopIdx = idx
		}
		if c == "destroy:plex-1.0.0" {
			destroyIdx = idx
		}
	}
	if stopIdx == -1 || destroyIdx == -1 {
		t.Fatalf("missing expected calls: %v", fake.calls)
	}
	if !(stopIdx < destroyIdx) {
		t.Errorf("expected stop before storage purge, got order: %v", fake.calls)
	}
}
