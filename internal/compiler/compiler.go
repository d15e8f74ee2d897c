// Package compiler resolves a source package into a compiled package by
// running the template engine over every templated field (spec.md §4.8).
// Grounded on the teacher's Boxer, which composes independently-testable
// collaborators (provisioner, db.Queries) the same way this composes
// internal/registry and internal/tmpl.
package compiler

import (
	"github.com/trunkctl/trunk/internal/model"
	"github.com/trunkctl/trunk/internal/tmpl"
	"github.com/trunkctl/trunk/internal/trunkerr"
)

// Context carries the globals and prompt responses a single compilation
// pass resolves against (design note 4: passed explicitly rather than
// reached through a back-reference on the package).
type Context struct {
	Globals   model.Globals
	Responses map[string]model.TypedValue
}

// ResponsesMap converts an ordered response list into the map Context and
// tmpl.ExpandPrompts expect.
func ResponsesMap(responses []model.PromptResponse) map[string]model.TypedValue {
	out := make(map[string]model.TypedValue, len(responses))
	for _, r := range responses {
		out[r.TemplateKey] = r.Value
	}
	return out
}

// Compile deep-resolves every templated field in src, replacing absent
// optional sections with their empty form and returning an error at the
// first failure (no partial expansion).
func Compile(src model.SourcePackage, ctx Context) (model.CompiledPackage, error) {
	source, err := compileSource(src.Source, ctx)
	if err != nil {
		return model.CompiledPackage{}, err
	}

	networking, err := compileNetworking(src.Networking, ctx)
	if err != nil {
		return model.CompiledPackage{}, err
	}

	storage, err := compileStorage(src.Storage, ctx)
	if err != nil {
		return model.CompiledPackage{}, err
	}

	system, err := compileSystem(src.System, ctx)
	if err != nil {
		return model.CompiledPackage{}, err
	}

	resources, err := compileResources(src.Resources, ctx)
	if err != nil {
		return model.CompiledPackage{}, err
	}

	return model.CompiledPackage{
		Title:       src.Title,
		Description: src.Description,
		Source:      source,
		Networking:  networking,
		Storage:     storage,
		System:      system,
		Resources:   resources,
	}, nil
}

func expandString(s string, ctx Context) (string, error) {
	return tmpl.NewTemplated[string](s).Compile(ctx.Globals, ctx.Responses)
}

func expandUint(s string, ctx Context) (uint64, error) {
	return tmpl.NewTemplated[uint64](s).Compile(ctx.Globals, ctx.Responses)
}

func expandBool(s string, ctx Context) (bool, error) {
	if s == "" {
		return false, nil
	}
	return tmpl.NewTemplated[bool](s).Compile(ctx.Globals, ctx.Responses)
}

func compileSource(src model.Source, ctx Context) (model.CompiledSource, error) {
	value, err := expandString(src.Value, ctx)
	if err != nil {
		return model.CompiledSource{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile source")
	}
	return model.CompiledSource{Kind: src.Kind, Value: value}, nil
}

func compileForwardList(pairs []model.PortForward, ctx Context) ([]model.CompiledPortForward, error) {
	out := make([]model.CompiledPortForward, 0, len(pairs))
	for _, p := range pairs {
		host, err := expandUint(p.Host, ctx)
		if err != nil {
			return nil, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile forward host port")
		}
		guest, err := expandUint(p.Guest, ctx)
		if err != nil {
			return nil, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile forward guest port")
		}
		out = append(out, model.CompiledPortForward{Host: host, Guest: guest})
	}
	return out, nil
}

func compileNetworking(n *model.Networking, ctx Context) (model.CompiledNetworking, error) {
	if n == nil {
		return model.CompiledNetworking{}, nil
	}
	forward, err := compileForwardList(n.Forward, ctx)
	if err != nil {
		return model.CompiledNetworking{}, err
	}
	expose, err := compileForwardList(n.Expose, ctx)
	if err != nil {
		return model.CompiledNetworking{}, err
	}
	internal, err := expandString(n.Internal, ctx)
	if err != nil {
		return model.CompiledNetworking{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile internal network name")
	}
	hostname, err := expandString(n.Hostname, ctx)
	if err != nil {
		return model.CompiledNetworking{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile hostname")
	}
	return model.CompiledNetworking{
		Forward:  forward,
		Expose:   expose,
		Internal: internal,
		Hostname: hostname,
	}, nil
}

func compileStorage(s *model.Storage, ctx Context) (model.CompiledStorage, error) {
	if s == nil {
		return model.CompiledStorage{}, nil
	}
	volumes := make([]model.CompiledVolume, 0, len(s.Volumes))
	for _, v := range s.Volumes {
		name, err := expandString(v.Name, ctx)
		if err != nil {
			return model.CompiledStorage{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile volume name")
		}
		size, err := expandUint(v.SizeBytes, ctx)
		if err != nil {
			return model.CompiledStorage{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile volume size for %s", name)
		}
		mountpoint := ""
		hasMount := v.Mountpoint != ""
		if hasMount {
			mountpoint, err = expandString(v.Mountpoint, ctx)
			if err != nil {
				return model.CompiledStorage{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile mountpoint for %s", name)
			}
		}
		recreate, err := expandBool(v.Recreate, ctx)
		if err != nil {
			return model.CompiledStorage{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile recreate flag for %s", name)
		}
		private, err := expandBool(v.Private, ctx)
		if err != nil {
			return model.CompiledStorage{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile private flag for %s", name)
		}
		volumes = append(volumes, model.CompiledVolume{
			Name:       name,
			SizeBytes:  size,
			Mountpoint: mountpoint,
			HasMount:   hasMount,
			Recreate:   recreate,
			Private:    private,
		})
	}
	return model.CompiledStorage{Volumes: volumes}, nil
}

func compileSystem(s *model.System, ctx Context) (model.CompiledSystem, error) {
	if s == nil {
		return model.CompiledSystem{}, nil
	}
	hostPID, err := expandBool(s.HostPID, ctx)
	if err != nil {
		return model.CompiledSystem{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile host_pid")
	}
	hostNet, err := expandBool(s.HostNet, ctx)
	if err != nil {
		return model.CompiledSystem{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile host_net")
	}
	privileged, err := expandBool(s.Privileged, ctx)
	if err != nil {
		return model.CompiledSystem{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile privileged")
	}
	caps := make([]string, 0, len(s.Capabilities))
	for _, c := range s.Capabilities {
		expanded, err := expandString(c, ctx)
		if err != nil {
			return model.CompiledSystem{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile capability")
		}
		caps = append(caps, expanded)
	}
	return model.CompiledSystem{
		HostPID:      hostPID,
		HostNet:      hostNet,
		Capabilities: caps,
		Privileged:   privileged,
	}, nil
}

func compileResources(r *model.Resources, ctx Context) (model.CompiledResources, error) {
	if r == nil {
		return model.CompiledResources{}, nil
	}
	cpus, err := expandUint(r.CPUs, ctx)
	if err != nil {
		return model.CompiledResources{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile cpus")
	}
	memory, err := expandUint(r.MemoryMiB, ctx)
	if err != nil {
		return model.CompiledResources{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to compile memory_mib")
	}
	return model.CompiledResources{CPUs: cpus, MemoryMiB: memory}, nil
}
