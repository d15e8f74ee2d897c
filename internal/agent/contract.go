// Package agent implements the node-agent RPC surface (spec.md §4.4, §6):
// Status, ZFS, Service, and host-info, exposed over a local Unix-domain
// socket. The wire transport is JSON bodies over net/http mounted on a Unix
// listener, grounded directly on the teacher's mux_server.go/mux_client.go
// (net.Listen("unix", ...) plus a stdlib http.ServeMux); see DESIGN.md's
// dropped-dependency note on google.golang.org/grpc.
package agent

import (
	"context"

	"github.com/trunkctl/trunk/internal/svcctl"
	"github.com/trunkctl/trunk/internal/zfs"
)

// HostInfo is the host telemetry payload spec.md §1/§4.4 names but never
// itemizes in full: hostname, kernel version, uptime, memory, CPU, load
// average, process count, and a per-pool ZFS capacity summary. Grounded on
// original_source/buckle/src/sysinfo.rs's Info struct, which carries the
// same fields (uptime, available/total memory, cpu count/usage, host name,
// kernel version, 1/5/15-minute load average, process count) collected via
// the `sysinfo` crate; total/available disk there is a generic df-style
// scan filtered to "trunk"-named mounts, which this repo's ZFS-specific
// Pools field already supersedes with a more precise per-pool accounting.
type HostInfo struct {
	Hostname             string      `json:"hostname"`
	KernelVersion        string      `json:"kernel_version"`
	UptimeSeconds        uint64      `json:"uptime_seconds"`
	AvailableMemoryBytes uint64      `json:"available_memory_bytes"`
	TotalMemoryBytes     uint64      `json:"total_memory_bytes"`
	CPUCount             int         `json:"cpu_count"`
	CPUUsagePercent      float64     `json:"cpu_usage_percent"`
	LoadAverage1         float64     `json:"load_average_1"`
	LoadAverage5         float64     `json:"load_average_5"`
	LoadAverage15        float64     `json:"load_average_15"`
	Processes            int         `json:"processes"`
	Pools                []PoolUsage `json:"pools"`
}

// PoolUsage summarizes one ZFS pool's capacity.
type PoolUsage struct {
	Pool       string `json:"pool"`
	UsedBytes  uint64 `json:"used_bytes"`
	AvailBytes uint64 `json:"avail_bytes"`
}

// PingResult is Status.Ping's response: liveness plus a stable identity
// fingerprint for the responding node agent, per SPEC_FULL.md §5's
// host-key-material entry.
type PingResult struct {
	Fingerprint string `json:"fingerprint"`
}

// Protocol names a transport for ExposePort, mirroring
// original_source/buckle/src/upnp.rs's Protocol enum.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// PortForward is one UPnP IGD port-mapping request, grounded on
// original_source/buckle/src/upnp.rs's PortForward and
// buckle/src/client.rs's NetworkClient.expose_port.
type PortForward struct {
	Port     uint16   `json:"port"`
	Protocol Protocol `json:"protocol"`
	Name     string   `json:"name"`
}

// NodeAgent is the full contract a caller two tiers up (the package
// manager's installer) depends on. Both the in-process server
// implementation and the Unix-socket Client satisfy it, so installer tests
// can swap in a fake without a socket.
type NodeAgent interface {
	Ping(ctx context.Context) (PingResult, error)
	HostInfo(ctx context.Context) (HostInfo, error)
	ExposePort(ctx context.Context, pf PortForward) error

	ZFSList(ctx context.Context, pool, filter string) (zfs.Listing, error)
	ZFSStat(ctx context.Context, pool, name string) (zfs.Stat, error)
	ZFSCreateDataset(ctx context.Context, pool, name string, options map[string]string) error
	ZFSCreateVolume(ctx context.Context, pool, name string, sizeBytes uint64, options map[string]string) error
	ZFSDestroy(ctx context.Context, pool, name string) error
	ZFSRename(ctx context.Context, pool, oldName, newName string) error
	ZFSSet(ctx context.Context, pool, name string, properties map[string]string) error

	ServiceStart(ctx context.Context, objectPath string) error
	ServiceStop(ctx context.Context, objectPath string) error
	ServiceReload(ctx context.Context) error
	ServiceLoadUnit(ctx context.Context, name string) (string, error)
	ServiceStatus(ctx context.Context, objectPath string) (svcctl.UnitStatus, error)
	ServiceList(ctx context.Context, filter string) ([]svcctl.Unit, error)
	ServiceLog(ctx context.Context, unit string, count int, cursor string, dir svcctl.Direction) (<-chan svcctl.LogEntry, error)
}
