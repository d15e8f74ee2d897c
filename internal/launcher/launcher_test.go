package launcher

import (
	"strings"
	"testing"

	"github.com/trunkctl/trunk/internal/model"
)

func TestGenerateContainerArgsScenario(t *testing.T) {
	pkg := model.CompiledPackage{
		Title: model.Title{Name: "podman-test", Version: "0.0.1"},
		Source: model.CompiledSource{Kind: model.SourceContainer, Value: "docker://debian"},
		Storage: model.CompiledStorage{
			Volumes: []model.CompiledVolume{
				{Name: "private", Mountpoint: "/private-test", HasMount: true},
				{Name: "shared", Mountpoint: "/shared-test", HasMount: true},
			},
		},
		System: model.CompiledSystem{
			HostPID:      true,
			HostNet:      true,
			Privileged:   true,
			Capabilities: []string{"SYS_ADMIN"},
		},
	}

	cfg := Config{ContainerRuntime: "podman"}
	got, err := GenerateCommand(cfg, pkg, "/volume-root")
	if err != nil {
		t.Fatalf("GenerateCommand: %v", err)
	}

	want := strings.Fields("podman run --rm --name podman-test-0.0.1 " +
		"-v /volume-root/private:/private-test:rshared " +
		"-v /volume-root/shared:/shared-test:rshared " +
		"--pid host --network host --privileged --cap-add SYS_ADMIN docker://debian")

	if len(got) != len(want) {
		t.Fatalf("argv length = %d, want %d\n got: %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("argv[%d] = %q, want %q\n got: %v\nwant: %v", i, got[i], want[i], got, want)
		}
	}
}

func TestInternalNetworkWinsOverHostNet(t *testing.T) {
	pkg := model.CompiledPackage{
		Title:      model.Title{Name: "svc", Version: "1.0.0"},
		Source:     model.CompiledSource{Kind: model.SourceContainer, Value: "docker://svc"},
		Networking: model.CompiledNetworking{Internal: "trunk0"},
		System:     model.CompiledSystem{HostNet: true},
	}

	got, err := GenerateCommand(Config{ContainerRuntime: "podman"}, pkg, "/vr")
	if err != nil {
		t.Fatalf("GenerateCommand: %v", err)
	}
	joined := strings.Join(got, " ")
	if strings.Contains(joined, "--network host") {
		t.Errorf("expected internal network to win, got argv: %v", got)
	}
	if !strings.Contains(joined, "--network trunk0") {
		t.Errorf("expected internal network flag, got argv: %v", got)
	}
}

func TestGenerateVMArgsScenario(t *testing.T) {
	pkg := model.CompiledPackage{
		Title:     model.Title{Name: "plex-qemu", Version: "0.0.1"},
		Source:    model.CompiledSource{Kind: model.SourceURL, Value: "https://example.com/image.qcow2"},
		Resources: model.CompiledResources{CPUs: 8, MemoryMiB: 4096},
		Networking: model.CompiledNetworking{
			Forward: []model.CompiledPortForward{
				{Host: 1234, Guest: 5678},
				{Host: 2345, Guest: 6789},
			},
		},
	}

	got, err := GenerateCommand(Config{VMMonitor: "qemu-system-x86_64"}, pkg, "/volume-root")
	if err != nil {
		t.Fatalf("GenerateCommand: %v", err)
	}

	nic := argAfter(t, got, "-nic")
	if nic != "user,hostfwd=tcp:0.0.0.0:1234-:5678,hostfwd=tcp:0.0.0.0:2345-:6789" {
		t.Errorf("-nic = %q", nic)
	}
	mem := argAfter(t, got, "-m")
	if mem != "4096M" {
		t.Errorf("-m = %q, want 4096M", mem)
	}
	smp := argAfter(t, got, "-smp")
	if smp != "cpus=8,cores=8,maxcpus=8" {
		t.Errorf("-smp = %q, want cpus=8,cores=8,maxcpus=8", smp)
	}
}

func TestVMReservedVolumeNamesRejected(t *testing.T) {
	pkg := model.CompiledPackage{
		Title:  model.Title{Name: "x", Version: "1.0.0"},
		Source: model.CompiledSource{Kind: model.SourceURL, Value: "https://example.com/x.qcow2"},
		Storage: model.CompiledStorage{
			Volumes: []model.CompiledVolume{{Name: "image"}},
		},
	}
	if _, err := GenerateCommand(Config{VMMonitor: "qemu"}, pkg, "/vr"); err == nil {
		t.Fatalf("expected error for reserved volume name")
	}
}

func argAfter(t *testing.T, argv []string, flag string) string {
	t.Helper()
	for i, a := range argv {
		if a == flag && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	t.Fatalf("flag %q not found in argv %v", flag, argv)
	return ""
}
