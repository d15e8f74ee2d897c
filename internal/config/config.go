// Package config defines the kong-parsed CLI surface shared by buckle,
// charon, and gild (SPEC_FULL.md §4's Configuration note): registry root,
// node-agent socket path, systemd root, container-runtime/VM-monitor binary
// names. No file-based configuration, matching
// spec.md §1's scope. Grounded on the teacher's cmd/sand CLI struct shape
// (`alecthomas/kong` struct tags for defaults/help text).
package config

import (
	"github.com/trunkctl/trunk/internal/installer"
	"github.com/trunkctl/trunk/internal/launcher"
)

// Common is embedded by every binary's top-level CLI struct.
type Common struct {
	LogFile  string `help:"log file path (empty writes JSON logs to stderr)" default:""`
	LogLevel string `help:"log level: debug, info, warn, error" default:"info" enum:"debug,info,warn,error"`
}

// BuckleCLI is the node agent's flag surface.
type BuckleCLI struct {
	Common
	SocketPath       string   `help:"Unix socket path for the node-agent RPC surface" default:"/run/trunk/buckle.sock"`
	Pools            []string `help:"ZFS pools this node agent manages" default:"tank"`
	HostKeyPath      string   `help:"path to this node's ed25519 host key (generated on first start)" default:"/var/lib/trunk/buckle_host_key"`
	MigrationRoot    string   `help:"directory the startup migration engine persists its cursor/failed-set to" default:"/var/lib/trunk/migrations"`
	ContainerRuntime string   `help:"container runtime binary used by the startup baseline migrations" default:"podman"`
}

// CharonCLI is the package manager's flag surface, including the
// launch/stop re-entry subcommands spec.md §6 requires the same binary to
// accept.
type CharonCLI struct {
	Common
	RegistryRoot    string `name:"registry-root" short:"r" help:"registry root directory" default:"/var/lib/trunk/registry"`
	NodeAgentSocket string `name:"node-agent-socket" short:"b" help:"node-agent Unix socket path" default:"/run/trunk/buckle.sock"`
	Pool            string `help:"ZFS pool for package storage" default:"tank"`
	VolumeRootBase  string `help:"base directory packages' volume roots are mounted under" default:"/trunk/volumes"`
	SystemdRoot     string `help:"directory generated unit files are written to" default:"/etc/systemd/system"`
	CharonBinary    string `help:"path to this binary, recorded in generated unit files" default:"/usr/sbin/charon"`
	ContainerRuntime string `help:"container runtime binary" default:"podman"`
	VMMonitor       string `help:"VM monitor binary" default:"qemu-system-x86_64"`

	Install InstallCmd `cmd:"" help:"install a package"`
	Remove  RemoveCmd  `cmd:"" help:"uninstall a package"`
	Launch  LaunchCmd  `cmd:"" help:"re-entry: generate and exec the launcher argv for a compiled package (invoked by the generated unit file)"`
	Stop    StopCmd    `cmd:"" help:"re-entry: stop a running package (invoked by the generated unit file)"`
}

// InstallCmd installs name@version.
type InstallCmd struct {
	Name    string `arg:""`
	Version string `arg:""`
}

// RemoveCmd uninstalls name@version, optionally purging storage.
type RemoveCmd struct {
	Name    string `arg:""`
	Version string `arg:""`
	Purge   bool   `help:"also destroy the package's ZFS datasets/volumes"`
}

// LaunchCmd is the unit file's ExecStart re-entry point.
type LaunchCmd struct {
	Name       string `arg:""`
	Version    string `arg:""`
	VolumeRoot string `arg:""`
}

// StopCmd is the unit file's ExecStop re-entry point.
type StopCmd struct {
	Name       string `arg:""`
	Version    string `arg:""`
	VolumeRoot string `arg:""`
}

// LauncherConfig derives an internal/launcher.Config from the parsed flags.
func (c *CharonCLI) LauncherConfig() launcher.Config {
	return launcher.Config{ContainerRuntime: c.ContainerRuntime, VMMonitor: c.VMMonitor}
}

// InstallerConfig derives an internal/installer.Config from the parsed
// flags.
func (c *CharonCLI) InstallerConfig() installer.Config {
	return installer.Config{
		Pool:            c.Pool,
		VolumeRootBase:  c.VolumeRootBase,
		SystemdRoot:     c.SystemdRoot,
		RegistryRoot:    c.RegistryRoot,
		NodeAgentSocket: c.NodeAgentSocket,
		CharonBinary:    c.CharonBinary,
	}
}

// GildCLI is the API gateway's flag surface. It carries the same
// storage/unit-placement flags as CharonCLI because gild's install handler
// drives the same internal/installer.Installer charon's CLI does.
type GildCLI struct {
	Common
	ListenAddr      string `help:"HTTP listen address" default:":8443"`
	DatabasePath    string `help:"sqlite database path for sessions/audit/users" default:"/var/lib/trunk/gild.db"`
	NodeAgentSocket string `name:"node-agent-socket" short:"b" help:"node-agent Unix socket path" default:"/run/trunk/buckle.sock"`
	RegistryRoot    string `name:"registry-root" short:"r" help:"registry root directory" default:"/var/lib/trunk/registry"`
	Pool            string `help:"ZFS pool for package storage" default:"tank"`
	VolumeRootBase  string `help:"base directory packages' volume roots are mounted under" default:"/trunk/volumes"`
	SystemdRoot     string `help:"directory generated unit files are written to" default:"/etc/systemd/system"`
	CharonBinary    string `help:"path to the charon binary, recorded in generated unit files" default:"/usr/sbin/charon"`
	JWTSigningKey   string `help:"HMAC signing key for session JWTs" required:""`
	AuditLogPath    string `help:"unused: audit records are written to the sqlite database" default:""`
}

// InstallerConfig derives an internal/installer.Config from the parsed
// flags, mirroring CharonCLI.InstallerConfig.
func (c *GildCLI) InstallerConfig() installer.Config {
	return installer.Config{
		Pool:            c.Pool,
		VolumeRootBase:  c.VolumeRootBase,
		SystemdRoot:     c.SystemdRoot,
		RegistryRoot:    c.RegistryRoot,
		NodeAgentSocket: c.NodeAgentSocket,
		CharonBinary:    c.CharonBinary,
	}
}
