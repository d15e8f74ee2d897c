package installer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/trunkctl/trunk/internal/model"
	"github.com/trunkctl/trunk/internal/trunkerr"
)

// renderUnit builds the unit file text from spec.md §4.9: a [Unit]
// description, a [Service] section invoking the charon binary's launch/stop
// re-entry subcommands with auto-restart and a 300s timeout, and an
// [Install] alias.
func renderUnit(cfg Config, pkg model.CompiledPackage) string {
	volumeRoot := filepath.Join(cfg.VolumeRootBase, pkg.Title.String())
	unit := unitName(pkg.Title)

	execStart := fmt.Sprintf("%s launch %s %s %s -r %s -b %s",
		cfg.CharonBinary, pkg.Title.Name, pkg.Title.Version, volumeRoot, cfg.RegistryRoot, cfg.NodeAgentSocket)
	execStop := fmt.Sprintf("%s stop %s %s %s -r %s -b %s",
		cfg.CharonBinary, pkg.Title.Name, pkg.Title.Version, volumeRoot, cfg.RegistryRoot, cfg.NodeAgentSocket)

	return fmt.Sprintf(`[Unit]
Description=%s %s

[Service]
ExecStart=%s
ExecStop=%s
Restart=always
TimeoutSec=300

[Install]
Alias=%s
`, pkg.Title.Name, pkg.Title.Version, execStart, execStop, unit)
}

// writeUnitFile rewrites the unit file at path only when its content
// differs from what's already there, so repeated installs of an unchanged
// package don't perturb the unit's mtime (SPEC_FULL.md's idempotent-rewrite
// supplement). The installer reloads the service manager either way.
func writeUnitFile(path, content string) error {
	if existing, err := os.ReadFile(path); err == nil && string(existing) == content {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to create systemd root %s", filepath.Dir(path))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to rename %s to %s", tmp, path)
	}
	return nil
}

func removeUnitFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to remove unit file %s", path)
	}
	return nil
}
