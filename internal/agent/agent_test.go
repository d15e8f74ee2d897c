package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/trunkctl/trunk/internal/svcctl"
	"github.com/trunkctl/trunk/internal/zfs"
)

// fakeAgent is a NodeAgent test double, mirroring the teacher's
// mockContainerOps pattern: plain struct fields instead of a mock
// framework.
type fakeAgent struct {
	pingCalled  bool
	status      svcctl.UnitStatus
	listing     zfs.Listing
	exposedPort PortForward
}

func (f *fakeAgent) Ping(ctx context.Context) (PingResult, error) {
	f.pingCalled = true
	return PingResult{Fingerprint: "SHA256:fake"}, nil
}
func (f *fakeAgent) HostInfo(ctx context.Context) (HostInfo, error) {
	return HostInfo{Hostname: "node-a"}, nil
}
func (f *fakeAgent) ExposePort(ctx context.Context, pf PortForward) error {
	f.exposedPort = pf
	return nil
}
func (f *fakeAgent) ZFSList(ctx context.Context, pool, filter string) (zfs.Listing, error) {
	return f.listing, nil
}
func (f *fakeAgent) ZFSStat(ctx context.Context, pool, name string) (zfs.Stat, error) {
	return zfs.Stat{Name: name, SizeBytes: 42}, nil
}
func (f *fakeAgent) ZFSCreateDataset(ctx context.Context, pool, name string, options map[string]string) error {
	return nil
}
func (f *fakeAgent) ZFSCreateVolume(ctx context.Context, pool, name string, sizeBytes uint64, options map[string]string) error {
	return nil
}
func (f *fakeAgent) ZFSDestroy(ctx context.Context, pool, name string) error { return nil }
func (f *fakeAgent) ZFSRename(ctx context.Context, pool, oldName, newName string) error {
	return nil
}
func (f *fakeAgent) ZFSSet(ctx context.Context, pool, name string, properties map[string]string) error {
	return nil
}
func (f *fakeAgent) ServiceStart(ctx context.Context, objectPath string) error { return nil }
func (f *fakeAgent) ServiceStop(ctx context.Context, objectPath string) error  { return nil }
func (f *fakeAgent) ServiceReload(ctx context.Context) error                  { return nil }
func (f *fakeAgent) ServiceLoadUnit(ctx context.Context, name string) (string, error) {
	return "/org/freedesktop/systemd1/unit/" + name, nil
}
func (f *fakeAgent) ServiceStatus(ctx context.Context, objectPath string) (svcctl.UnitStatus, error) {
	return f.status, nil
}
func (f *fakeAgent) ServiceList(ctx context.Context, filter string) ([]svcctl.Unit, error) {
	return nil, nil
}
func (f *fakeAgent) ServiceLog(ctx context.Context, unit string, count int, cursor string, dir svcctl.Direction) (<-chan svcctl.LogEntry, error) {
	return nil, nil
}

var _ NodeAgent = (*fakeAgent)(nil)

func TestClientServerRoundTrip(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "buckle.sock")
	fake := &fakeAgent{
		status:  svcctl.UnitStatus{Load: svcctl.LoadLoaded, Runtime: svcctl.RuntimeStarted, LastRun: svcctl.LastRunRunning},
		listing: zfs.Listing{{Name: "tank/plex", Kind: zfs.KindDataset}},
	}
	server := NewServer(socketPath, fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- server.ServeUnix(ctx) }()
	waitForSocket(t, socketPath)

	client := NewClient(socketPath)

	pingResult, err := client.Ping(ctx)
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !fake.pingCalled {
		t.Errorf("expected Ping to reach the server")
	}
	if pingResult.Fingerprint != "SHA256:fake" {
		t.Errorf("Fingerprint = %q, want SHA256:fake", pingResult.Fingerprint)
	}

	info, err := client.HostInfo(ctx)
	if err != nil {
		t.Fatalf("HostInfo: %v", err)
	}
	if info.Hostname != "node-a" {
		t.Errorf("Hostname = %q, want node-a", info.Hostname)
	}

	listing, err := client.ZFSList(ctx, "tank", "")
	if err != nil {
		t.Fatalf("ZFSList: %v", err)
	}
	if len(listing) != 1 || listing[0].Name != "tank/plex" {
		t.Errorf("ZFSList = %v", listing)
	}

	status, err := client.ServiceStatus(ctx, "/org/freedesktop/systemd1/unit/plex")
	if err != nil {
		t.Fatalf("ServiceStatus: %v", err)
	}
	if status.LastRun != svcctl.LastRunRunning {
		t.Errorf("LastRun = %v, want running", status.LastRun)
	}

	if err := client.ExposePort(ctx, PortForward{Port: 8080, Protocol: ProtocolTCP, Name: "plex"}); err != nil {
		t.Fatalf("ExposePort: %v", err)
	}
	if fake.exposedPort.Port != 8080 || fake.exposedPort.Protocol != ProtocolTCP {
		t.Errorf("exposedPort = %+v, want port 8080/tcp", fake.exposedPort)
	}

	cancel()
	<-done
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := filepath.Abs(path); err == nil {
			client := NewClient(path)
			if _, err := client.Ping(context.Background()); err == nil {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
}
