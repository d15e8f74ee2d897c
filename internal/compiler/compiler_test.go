package compiler

import (
	"testing"

	"github.com/trunkctl/trunk/internal/model"
)

func TestCompileMaterializesEmptySections(t *testing.T) {
	src := model.SourcePackage{
		Title:  model.Title{Name: "plex", Version: "0.0.1"},
		Source: model.Source{Kind: model.SourceContainer, Value: "docker://plex"},
	}

	got, err := Compile(src, Context{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(got.Storage.Volumes) != 0 {
		t.Errorf("expected empty (not nil-panicking) volume list")
	}
	if len(got.System.Capabilities) != 0 {
		t.Errorf("expected empty capability list")
	}
}

func TestCompileExpandsTemplatedFields(t *testing.T) {
	src := model.SourcePackage{
		Title:  model.Title{Name: "plex", Version: "0.0.1"},
		Source: model.Source{Kind: model.SourceContainer, Value: "docker://@image@"},
		Storage: &model.Storage{
			Volumes: []model.Volume{
				{Name: "data", SizeBytes: "?size?", Mountpoint: "/data", Recreate: "false", Private: "true"},
			},
		},
	}

	ctx := Context{
		Globals: model.Globals{"image": "plex"},
		Responses: map[string]model.TypedValue{
			"size": {Kind: model.ValueInt, Int: 1073741824},
		},
	}

	got, err := Compile(src, ctx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got.Source.Value != "docker://plex" {
		t.Errorf("Source.Value = %q, want docker://plex", got.Source.Value)
	}
	if len(got.Storage.Volumes) != 1 || got.Storage.Volumes[0].SizeBytes != 1073741824 {
		t.Fatalf("unexpected compiled volume: %+v", got.Storage.Volumes)
	}
	if !got.Storage.Volumes[0].Private {
		t.Errorf("expected private flag to be true")
	}
}

func TestCompileFailsOnFirstError(t *testing.T) {
	src := model.SourcePackage{
		Title:  model.Title{Name: "plex", Version: "0.0.1"},
		Source: model.Source{Kind: model.SourceContainer, Value: "@missing@"},
	}
	if _, err := Compile(src, Context{}); err == nil {
		t.Fatalf("expected compile failure for unresolved template key")
	}
}
