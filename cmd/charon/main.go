// Command charon is Trunk's package manager: it resolves, compiles, and
// installs packages as supervised systemd services, and re-enters itself
// (via the `launch`/`stop` subcommands) as the ExecStart/ExecStop of the
// unit files it generates (spec.md §6). Grounded on cmd/sand/main.go's
// kong.Parse pattern; dispatch is a manual switch on kctx.Command() rather
// than kong's method-based Run dispatch, since the subcommand structs live
// in internal/config and Go forbids attaching methods to a type from
// another package.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/trunkctl/trunk/internal/agent"
	"github.com/trunkctl/trunk/internal/compiler"
	"github.com/trunkctl/trunk/internal/config"
	"github.com/trunkctl/trunk/internal/installer"
	"github.com/trunkctl/trunk/internal/launcher"
	"github.com/trunkctl/trunk/internal/model"
	"github.com/trunkctl/trunk/internal/obs"
	"github.com/trunkctl/trunk/internal/qmp"
	"github.com/trunkctl/trunk/internal/registry"
	"github.com/trunkctl/trunk/internal/trunkerr"
)

func main() {
	var cli config.CharonCLI
	kctx := kong.Parse(&cli, kong.Description("Trunk package manager: install, remove, launch, and stop packages."))

	obs.InitSlog(obs.LogConfig{Path: cli.LogFile, Level: cli.LogLevel})

	reg := registry.New(cli.RegistryRoot)
	node := agent.NewClient(cli.NodeAgentSocket)
	inst := installer.New(reg, node, cli.InstallerConfig())
	launcherCfg := cli.LauncherConfig()

	ctx := context.Background()
	var err error
	// kong renders positional arg placeholders into Command() alongside the
	// verb (e.g. "install <name> <version>"); dispatch only on the leading
	// verb so the exact placeholder spelling can't desync this switch from
	// the struct tags in internal/config.
	verb, _, _ := strings.Cut(kctx.Command(), " ")
	switch verb {
	case "install":
		err = inst.Install(ctx, cli.Install.Name, cli.Install.Version)
	case "remove":
		err = inst.Uninstall(ctx, cli.Remove.Name, cli.Remove.Version, cli.Remove.Purge)
	case "launch":
		err = launch(reg, launcherCfg, cli.Launch)
	case "stop":
		err = stop(reg, launcherCfg, cli.Stop)
	default:
		err = fmt.Errorf("unrecognized command %q", kctx.Command())
	}
	kctx.FatalIfErrorf(err)
}

func compilePackage(reg *registry.Registry, name, version string) (model.CompiledPackage, error) {
	src, err := reg.Load(name, version)
	if err != nil {
		return model.CompiledPackage{}, err
	}
	globals, err := reg.LoadGlobals(name)
	if err != nil {
		return model.CompiledPackage{}, err
	}
	responses, err := reg.LoadResponses(name)
	if err != nil {
		return model.CompiledPackage{}, err
	}
	return compiler.Compile(src, compiler.Context{Globals: globals, Responses: compiler.ResponsesMap(responses)})
}

// launch is the unit file's ExecStart re-entry point: compile the package
// and exec the resulting argv in place, so systemd supervises the launched
// process directly rather than a wrapping charon process.
func launch(reg *registry.Registry, cfg launcher.Config, c config.LaunchCmd) error {
	pkg, err := compilePackage(reg, c.Name, c.Version)
	if err != nil {
		return err
	}
	argv, err := launcher.GenerateCommand(cfg, pkg, c.VolumeRoot)
	if err != nil {
		return err
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindExternalCommand, err, "failed to resolve %s on PATH", argv[0])
	}
	slog.Info("charon launch", "title", pkg.Title.String(), "argv", argv)
	return syscall.Exec(path, argv, os.Environ())
}

// stop is the unit file's ExecStop re-entry point: tear down a
// container-backed package via the runtime's `rm -f`, or a
// VM-backed package via a QMP shutdown/quit round-trip against its monitor
// socket (spec.md §4.10, §4.11).
func stop(reg *registry.Registry, cfg launcher.Config, c config.StopCmd) error {
	pkg, err := compilePackage(reg, c.Name, c.Version)
	if err != nil {
		return err
	}

	switch pkg.Source.Kind {
	case model.SourceContainer:
		argv := launcher.StopContainerCommand(cfg, pkg)
		cmd := exec.Command(argv[0], argv[1:]...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return trunkerr.Command(argv, string(out), cmd.ProcessState.ExitCode())
		}
		return nil
	case model.SourceURL:
		return stopVM(pkg, c.VolumeRoot)
	default:
		return trunkerr.New(trunkerr.KindValidation, "unknown source kind %q", pkg.Source.Kind)
	}
}

func stopVM(pkg model.CompiledPackage, volumeRoot string) error {
	socketPath := volumeRoot + "/qemu-monitor"
	client, err := qmp.Dial(context.Background(), socketPath)
	if err != nil {
		return trunkerr.Subservice("connect to QMP monitor for "+pkg.Title.String(), err)
	}
	defer client.Close()

	if err := client.Shutdown(); err != nil {
		return trunkerr.Subservice("QMP shutdown for "+pkg.Title.String(), err)
	}
	return client.Quit()
}
