// Package registry implements the on-disk catalog of source packages,
// per-package globals, and per-package prompt responses (spec.md §4.6,
// §6). Writes are atomic (temp+rename), grounded on the teacher's
// file_ops.go/default_cloner.go idiom of a small testable ops interface
// wrapping the filesystem.
package registry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/trunkctl/trunk/internal/model"
	"github.com/trunkctl/trunk/internal/trunkerr"
)

// Registry owns a root directory laid out per spec.md §3:
//
//	packages/<name>/<version>.json
//	installed/<name>/<version>
//	variables/<name>.json
//	responses/<name>.json
type Registry struct {
	root string
}

// New returns a Registry rooted at root. The directory tree is created
// lazily by the operations that need it.
func New(root string) *Registry { return &Registry{root: root} }

// Root returns the registry's root directory.
func (r *Registry) Root() string { return r.root }

func (r *Registry) packagePath(name, version string) string {
	return filepath.Join(r.root, "packages", name, version+".json")
}

func (r *Registry) installedMarkerPath(name, version string) string {
	return filepath.Join(r.root, "installed", name, version)
}

func (r *Registry) globalsPath(name string) string {
	return filepath.Join(r.root, "variables", name+".json")
}

func (r *Registry) responsesPath(name string) string {
	return filepath.Join(r.root, "responses", name+".json")
}

// writeAtomic writes data to path via a .tmp sibling plus rename, so readers
// always observe either the full prior value or the full new value.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to create directory for %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to rename %s to %s", tmp, path)
	}
	return nil
}

// Write atomically persists src's JSON serialization at
// packages/<name>/<version>.json.
func (r *Registry) Write(src model.SourcePackage) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to encode source package %s", src.Title)
	}
	return writeAtomic(r.packagePath(src.Title.Name, src.Title.Version), data)
}

// Remove recursively deletes packages/<name>/.
func (r *Registry) Remove(name string) error {
	dir := filepath.Join(r.root, "packages", name)
	if err := os.RemoveAll(dir); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to remove package directory %s", dir)
	}
	return nil
}

// Load parses and returns the source package at name/version, with Root
// attached (design note 4: the registry owns the root, not the package).
func (r *Registry) Load(name, version string) (model.SourcePackage, error) {
	data, err := os.ReadFile(r.packagePath(name, version))
	if err != nil {
		return model.SourcePackage{}, trunkerr.Wrap(trunkerr.KindIO, err, "failed to read package %s-%s", name, version)
	}
	var src model.SourcePackage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&src); err != nil {
		return model.SourcePackage{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to parse package %s-%s", name, version)
	}
	src.Root = r.root
	return src, nil
}

// Status is one row of List: a title plus whether it's installed.
type Status struct {
	Title     model.Title
	Installed bool
}

// List enumerates packages/*/*.json, sorted by name ascending then version
// descending, with the installed flag derived from the installed/ marker.
func (r *Registry) List() ([]Status, error) {
	packagesDir := filepath.Join(r.root, "packages")
	names, err := os.ReadDir(packagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to list packages directory")
	}

	var statuses []Status
	for _, nameEntry := range names {
		if !nameEntry.IsDir() {
			continue
		}
		name := nameEntry.Name()
		versionFiles, err := os.ReadDir(filepath.Join(packagesDir, name))
		if err != nil {
			return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to list versions for %s", name)
		}
		for _, vf := range versionFiles {
			if vf.IsDir() || filepath.Ext(vf.Name()) != ".json" {
				continue
			}
			version := vf.Name()[:len(vf.Name())-len(".json")]
			title := model.Title{Name: name, Version: version}
			_, err := os.Stat(r.installedMarkerPath(name, version))
			statuses = append(statuses, Status{Title: title, Installed: err == nil})
		}
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Title.Less(statuses[j].Title) })
	return statuses, nil
}

// Installed enumerates the installed/ tree and returns every installed
// title.
func (r *Registry) Installed() ([]model.Title, error) {
	installedDir := filepath.Join(r.root, "installed")
	names, err := os.ReadDir(installedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to list installed directory")
	}

	var titles []model.Title
	for _, nameEntry := range names {
		if !nameEntry.IsDir() {
			continue
		}
		versions, err := os.ReadDir(filepath.Join(installedDir, nameEntry.Name()))
		if err != nil {
			return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to list installed versions for %s", nameEntry.Name())
		}
		for _, v := range versions {
			titles = append(titles, model.Title{Name: nameEntry.Name(), Version: v.Name()})
		}
	}
	return titles, nil
}

// MarkInstalled creates the installed/<name>/<version> marker, failing if it
// already exists (exclusive create).
func (r *Registry) MarkInstalled(name, version string) error {
	path := r.installedMarkerPath(name, version)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to create installed directory for %s", name)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to create installed marker for %s-%s", name, version)
	}
	return f.Close()
}

// ClearInstalled removes the installed/<name>/<version> marker.
func (r *Registry) ClearInstalled(name, version string) error {
	if err := os.Remove(r.installedMarkerPath(name, version)); err != nil && !os.IsNotExist(err) {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to remove installed marker for %s-%s", name, version)
	}
	return nil
}

// LoadGlobals reads the per-package-name globals singleton.
func (r *Registry) LoadGlobals(name string) (model.Globals, error) {
	data, err := os.ReadFile(r.globalsPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, trunkerr.New(trunkerr.KindValidation, "missing globals for package %s", name)
		}
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to read globals for %s", name)
	}
	var globals model.Globals
	if err := json.Unmarshal(data, &globals); err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to parse globals for %s", name)
	}
	return globals, nil
}

// WriteGlobals atomically persists globals for name.
func (r *Registry) WriteGlobals(name string, globals model.Globals) error {
	data, err := json.MarshalIndent(globals, "", "  ")
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to encode globals for %s", name)
	}
	return writeAtomic(r.globalsPath(name), data)
}

// LoadResponses reads the per-package-name prompt-response singleton.
func (r *Registry) LoadResponses(name string) ([]model.PromptResponse, error) {
	data, err := os.ReadFile(r.responsesPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to read responses for %s", name)
	}
	var responses []model.PromptResponse
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to parse responses for %s", name)
	}
	return responses, nil
}

// WriteResponses atomically persists responses for name.
func (r *Registry) WriteResponses(name string, responses []model.PromptResponse) error {
	data, err := json.MarshalIndent(responses, "", "  ")
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to encode responses for %s", name)
	}
	return writeAtomic(r.responsesPath(name), data)
}

// Validate checks that name/version loads, that its title matches its path,
// that its globals file exists, and recursively validates every dependency.
// Results are memoized within a single Validate call to avoid exponential
// re-validation of diamond dependency graphs (SPEC_FULL.md §8); the cache is
// not retained across calls since registry files can change between them.
func (r *Registry) Validate(name, version string) error {
	return r.validate(name, version, map[string]error{})
}

func (r *Registry) validate(name, version string, seen map[string]error) error {
	key := name + "-" + version
	if err, ok := seen[key]; ok {
		return err
	}

	src, err := r.Load(name, version)
	if err != nil {
		seen[key] = err
		return err
	}
	if src.Title.Name != name || src.Title.Version != version {
		err := trunkerr.New(trunkerr.KindValidation, "package title %s does not match path %s", src.Title, key)
		seen[key] = err
		return err
	}
	if _, err := r.LoadGlobals(name); err != nil {
		seen[key] = err
		return err
	}

	for _, dep := range src.Dependencies {
		if err := r.validate(dep.Name, dep.Version, seen); err != nil {
			wrapped := trunkerr.Wrap(trunkerr.KindValidation, err, "dependency %s of %s failed to validate", dep, key)
			seen[key] = wrapped
			return wrapped
		}
	}

	seen[key] = nil
	return nil
}
