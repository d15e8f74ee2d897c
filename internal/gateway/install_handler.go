package gateway

import (
	"context"

	"github.com/trunkctl/trunk/internal/installer"
	"github.com/trunkctl/trunk/internal/registry"
)

// InstallRequest names the package an API caller wants installed.
type InstallRequest struct {
	Name    string `cbor:"name" validate:"required"`
	Version string `cbor:"version" validate:"required"`
}

// InstallResponse confirms what was installed.
type InstallResponse struct {
	Title  string `cbor:"title"`
	Status string `cbor:"status"`
}

// NewInstallHandler is the illustrative, non-exhaustive example handler
// SPEC_FULL.md §7 calls for: it composes internal/compiler (via
// internal/installer, which calls it) and internal/installer to install a
// package from an API call, running registry.Validate before attempting the
// install. A name/version with no package file fails that step as an io
// problem; a title mismatch, missing globals or a broken dependency fails it
// as a validation problem.
func NewInstallHandler(reg *registry.Registry, inst *installer.Installer) Handler[InstallRequest, InstallResponse] {
	return func(ctx context.Context, userID string, req InstallRequest) Result[InstallResponse] {
		if err := reg.Validate(req.Name, req.Version); err != nil {
			return Fail[InstallResponse](err)
		}
		if err := inst.Install(ctx, req.Name, req.Version); err != nil {
			return Fail[InstallResponse](err)
		}
		return Ok(InstallResponse{Title: req.Name + "-" + req.Version, Status: "installed"})
	}
}
