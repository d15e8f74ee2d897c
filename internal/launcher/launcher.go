// Package launcher turns a compiled package into a concrete argv for either
// the container runtime or the VM monitor (spec.md §4.10), plus the
// container runtime's `rm -f` argv for shutdown (VM shutdown goes over the
// QMP control socket from cmd/charon).
// Grounded on the teacher's options.ToArgs (reflect-over-struct-tag argv
// assembly) and container.go's CreateContainer, generalized here into a
// single deterministic builder since the exact flag order is load-bearing
// for spec.md §8's scenario 3/4 properties, which a generic reflect walk
// over struct tags cannot guarantee.
package launcher

import (
	"fmt"
	"path/filepath"

	"github.com/trunkctl/trunk/internal/model"
	"github.com/trunkctl/trunk/internal/trunkerr"
)

const (
	reservedImageVolume  = "image"
	reservedMonitorVolume = "qemu-monitor"
)

// Config names the external binaries this launcher invokes.
type Config struct {
	ContainerRuntime string // e.g. "podman"
	VMMonitor        string // e.g. "qemu-system-x86_64"
}

// GenerateCommand dispatches on pkg.Source.Kind and returns the argv to
// start the package's payload rooted at volumeRoot.
func GenerateCommand(cfg Config, pkg model.CompiledPackage, volumeRoot string) ([]string, error) {
	switch pkg.Source.Kind {
	case model.SourceContainer:
		return generateContainerArgs(cfg, pkg, volumeRoot), nil
	case model.SourceURL:
		return generateVMArgs(cfg, pkg, volumeRoot)
	default:
		return nil, trunkerr.New(trunkerr.KindValidation, "unknown source kind %q", pkg.Source.Kind)
	}
}

// generateContainerArgs builds the container-runtime argv per spec.md
// §4.10's container path and the concrete ordering in §8 scenario 3.
func generateContainerArgs(cfg Config, pkg model.CompiledPackage, volumeRoot string) []string {
	title := pkg.Title.String()
	args := []string{cfg.ContainerRuntime, "run", "--rm", "--name", title}

	if pkg.Networking.Hostname != "" {
		args = append(args, "--hostname", pkg.Networking.Hostname)
	}
	if pkg.Networking.Internal != "" {
		args = append(args, "--network", pkg.Networking.Internal)
	}

	for _, pair := range pkg.Networking.Forward {
		args = append(args, "-p", portPair(pair))
	}
	for _, pair := range pkg.Networking.Expose {
		args = append(args, "-p", portPair(pair))
	}

	for _, v := range pkg.Storage.Volumes {
		if !v.HasMount {
			continue // block devices are ignored in the container path
		}
		args = append(args, "-v", fmt.Sprintf("%s/%s:%s:rshared", volumeRoot, v.Name, v.Mountpoint))
	}

	if pkg.System.HostPID {
		args = append(args, "--pid", "host")
	}
	// Internal network wins over host networking when both are set
	// (DESIGN.md open-question decision 2).
	if pkg.System.HostNet && pkg.Networking.Internal == "" {
		args = append(args, "--network", "host")
	}
	if pkg.System.Privileged {
		args = append(args, "--privileged")
	}
	for _, cap := range pkg.System.Capabilities {
		args = append(args, "--cap-add", cap)
	}

	args = append(args, pkg.Source.Value)
	return args
}

func portPair(p model.CompiledPortForward) string {
	return fmt.Sprintf("%d:%d", p.Host, p.Guest)
}

// StopContainerCommand is the argv to tear down a container-backed package.
func StopContainerCommand(cfg Config, pkg model.CompiledPackage) []string {
	return []string{cfg.ContainerRuntime, "rm", "-f", pkg.Title.String()}
}

// generateVMArgs builds the VM-monitor argv per spec.md §4.10's VM path and
// the concrete ordering in §8 scenario 4.
func generateVMArgs(cfg Config, pkg model.CompiledPackage, volumeRoot string) ([]string, error) {
	for _, v := range pkg.Storage.Volumes {
		if v.Name == reservedImageVolume || v.Name == reservedMonitorVolume {
			return nil, trunkerr.New(trunkerr.KindValidation, "volume name %q is reserved", v.Name)
		}
	}

	monitorSocket := filepath.Join(volumeRoot, reservedMonitorVolume)
	cpus := pkg.Resources.CPUs

	args := []string{
		cfg.VMMonitor,
		"-nodefaults",
		"-chardev", fmt.Sprintf("socket,id=char0,path=%s,server=on,wait=off", monitorSocket),
		"-mon", "chardev=char0,mode=control,pretty=on",
		"-machine", "accel=kvm",
		"-vga", "none",
		"-m", fmt.Sprintf("%dM", pkg.Resources.MemoryMiB),
		"-cpu", "max",
		"-smp", fmt.Sprintf("cpus=%d,cores=%d,maxcpus=%d", cpus, cpus, cpus),
	}

	nic := "user"
	for _, pair := range pkg.Networking.Forward {
		nic += fmt.Sprintf(",hostfwd=tcp:0.0.0.0:%d-:%d", pair.Host, pair.Guest)
	}
	args = append(args, "-nic", nic)

	args = append(args, "-drive", fmt.Sprintf("file=%s,index=0", filepath.Join(volumeRoot, reservedImageVolume)))
	for i, v := range pkg.Storage.Volumes {
		args = append(args, "-drive", fmt.Sprintf("file=%s/%s,index=%d", volumeRoot, v.Name, i+1))
	}

	return args, nil
}
