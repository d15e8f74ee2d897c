package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/trunkctl/trunk/internal/model"
)

func samplePackage() model.SourcePackage {
	return model.SourcePackage{
		Title:       model.Title{Name: "plex", Version: "0.0.1"},
		Description: "media server",
		Source:      model.Source{Kind: model.SourceContainer, Value: "docker://plex"},
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	reg := New(t.TempDir())
	src := samplePackage()

	if err := reg.Write(src); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := reg.Load(src.Title.Name, src.Title.Version)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !loaded.Equal(src) {
		t.Errorf("round trip mismatch: got %+v, want %+v", loaded, src)
	}
}

func TestValidateRequiresTitleMatch(t *testing.T) {
	reg := New(t.TempDir())
	src := samplePackage()
	if err := reg.Write(src); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := reg.WriteGlobals(src.Title.Name, model.Globals{}); err != nil {
		t.Fatalf("WriteGlobals: %v", err)
	}

	if err := reg.Validate(src.Title.Name, src.Title.Version); err != nil {
		t.Fatalf("expected valid package, got: %v", err)
	}
	// The same package file, stored under a version it does not declare.
	data, err := os.ReadFile(filepath.Join(reg.Root(), "packages", "plex", "0.0.1.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(reg.Root(), "packages", "plex", "9.9.9.json"), data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := reg.Validate(src.Title.Name, "9.9.9"); err == nil {
		t.Fatalf("expected validation failure for mismatched version")
	}
}

func TestValidateMissingGlobalsFails(t *testing.T) {
	reg := New(t.TempDir())
	src := samplePackage()
	if err := reg.Write(src); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := reg.Validate(src.Title.Name, src.Title.Version); err == nil {
		t.Fatalf("expected validation failure for missing globals")
	}
}

func TestValidateRecursesDependencies(t *testing.T) {
	reg := New(t.TempDir())

	dep := samplePackage()
	dep.Title = model.Title{Name: "base", Version: "1.0.0"}
	if err := reg.Write(dep); err != nil {
		t.Fatalf("Write dep: %v", err)
	}
	// Deliberately omit globals for the dependency.

	top := samplePackage()
	top.Dependencies = []model.Title{dep.Title}
	if err := reg.Write(top); err != nil {
		t.Fatalf("Write top: %v", err)
	}
	if err := reg.WriteGlobals(top.Title.Name, model.Globals{}); err != nil {
		t.Fatalf("WriteGlobals top: %v", err)
	}

	if err := reg.Validate(top.Title.Name, top.Title.Version); err == nil {
		t.Fatalf("expected validation failure due to dependency missing globals")
	}
}

func TestListSortOrder(t *testing.T) {
	reg := New(t.TempDir())
	for _, title := range []model.Title{
		{Name: "zeta", Version: "1.0.0"},
		{Name: "alpha", Version: "1.0.0"},
		{Name: "alpha", Version: "2.0.0"},
	} {
		src := samplePackage()
		src.Title = title
		if err := reg.Write(src); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	statuses, err := reg.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	want := []model.Title{
		{Name: "alpha", Version: "2.0.0"},
		{Name: "alpha", Version: "1.0.0"},
		{Name: "zeta", Version: "1.0.0"},
	}
	for i, w := range want {
		if statuses[i].Title != w {
			t.Errorf("statuses[%d].Title = %+v, want %+v", i, statuses[i].Title, w)
		}
	}
}

func TestMarkInstalledExclusive(t *testing.T) {
	reg := New(t.TempDir())
	if err := reg.MarkInstalled("plex", "0.0.1"); err != nil {
		t.Fatalf("MarkInstalled: %v", err)
	}
	if err := reg.MarkInstalled("plex", "0.0.1"); err == nil {
		t.Fatalf("expected exclusive create to fail on second call")
	}
}
