package tmpl

import (
	"testing"

	"github.com/trunkctl/trunk/internal/model"
)

func TestExpandGlobals(t *testing.T) {
	globals := model.Globals{"foo": "bar", "baz": "quux"}

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "two keys", in: "@foo@ @baz@", want: "bar quux"},
		{name: "doubled delimiter", in: "bgates@@microsoft.com", want: "bgates@microsoft.com"},
		{name: "no delimiter passes through", in: "plain text", want: "plain text"},
		{name: "missing key fails", in: "@nonexistent@", wantErr: true},
		{name: "unterminated trailing delimiter passes through", in: "trailing @foo", want: "trailing @foo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandGlobals(tt.in, globals)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandGlobals(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandPrompts(t *testing.T) {
	responses := map[string]model.TypedValue{
		"greeting": {Kind: model.ValueString, Str: "hello, world!"},
		"shoesize": {Kind: model.ValueInt, Int: 20},
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "two keys", in: "?greeting? ?shoesize?", want: "hello, world! 20"},
		{name: "doubled delimiter", in: "??", want: "?"},
		{name: "question mark without pair", in: "why so serious?", want: "why so serious?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPrompts(tt.in, responses)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandPrompts(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCoerce(t *testing.T) {
	if v, err := Coerce[uint64]("42"); err != nil || v != 42 {
		t.Errorf("Coerce[uint64](42) = %v, %v", v, err)
	}
	if v, err := Coerce[bool]("true"); err != nil || v != true {
		t.Errorf("Coerce[bool](true) = %v, %v", v, err)
	}
	if _, err := Coerce[uint64]("not-a-number"); err == nil {
		t.Errorf("expected coercion failure")
	}
}

func TestTemplatedCompile(t *testing.T) {
	globals := model.Globals{"port": "8080"}
	templ := NewTemplated[uint64]("@port@")
	got, err := templ.Compile(globals, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 8080 {
		t.Errorf("Compile() = %d, want 8080", got)
	}
}
