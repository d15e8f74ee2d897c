// Package model holds the data model from spec.md §3: package titles, source
// packages (on-disk, templated), compiled packages (resolved), globals, and
// prompt responses.
package model

import "fmt"

// Title is the (name, version) key identifying a package.
type Title struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// String renders the "name-version" form used for unit names and paths.
func (t Title) String() string { return fmt.Sprintf("%s-%s", t.Name, t.Version) }

// Less orders titles by name ascending, then version descending (newest
// first), per spec.md §3.
func (t Title) Less(other Title) bool {
	if t.Name != other.Name {
		return t.Name < other.Name
	}
	return t.Version > other.Version
}

// ValueKind tags a PromptResponse's value.
type ValueKind string

const (
	ValueInt    ValueKind = "int"
	ValueSInt   ValueKind = "sint"
	ValueString ValueKind = "string"
	ValueBool   ValueKind = "bool"
)

// TypedValue is a tagged scalar: exactly one of the Int/SInt/Str/Bool fields
// is meaningful, selected by Kind.
type TypedValue struct {
	Kind ValueKind `json:"kind"`
	Int  uint64    `json:"int,omitempty"`
	SInt int64     `json:"sint,omitempty"`
	Str  string    `json:"str,omitempty"`
	Bool bool      `json:"bool,omitempty"`
}

// InputType is the declared scalar type of a prompt, or of any templated
// field once compiled.
type InputType string

const (
	InputInt    InputType = "int"
	InputSInt   InputType = "sint"
	InputString InputType = "string"
	InputBool   InputType = "bool"
)

// Prompt is one entry in a source package's ordered prompt list.
type Prompt struct {
	TemplateKey string    `json:"template_key"`
	Question    string    `json:"question"`
	InputType   InputType `json:"input_type"`
}

// SourceKind tags the two valid Source variants.
type SourceKind string

const (
	SourceURL       SourceKind = "url"
	SourceContainer SourceKind = "container"
)

// Source is the tagged variant {url} | {container} from spec.md §3.
type Source struct {
	Kind  SourceKind `json:"kind"`
	Value string     `json:"value"` // templated
}

// PortForward is a templated (host, guest) TCP forward pair.
type PortForward struct {
	Host string `json:"host"`
	Guest string `json:"guest"`
}

// Networking is the optional networking section of a source package.
type Networking struct {
	Forward  []PortForward `json:"forward,omitempty"`
	Expose   []PortForward `json:"expose,omitempty"`
	Internal string        `json:"internal,omitempty"` // network name, templated
	Hostname string        `json:"hostname,omitempty"` // templated
}

// EmptyNetworking returns the zero-value Networking used when the section is absent.
func EmptyNetworking() Networking { return Networking{} }

// Volume is one entry in a source package's ordered storage list.
type Volume struct {
	Name       string `json:"name"`       // templated
	SizeBytes  string `json:"size_bytes"` // templated -> uint64
	Mountpoint string `json:"mountpoint,omitempty"` // templated, optional
	Recreate   string `json:"recreate"`   // templated -> bool
	Private    string `json:"private"`    // templated -> bool
}

// Storage is the optional storage section of a source package.
type Storage struct {
	Volumes []Volume `json:"volumes,omitempty"`
}

// System is the optional system section of a source package.
type System struct {
	HostPID      string   `json:"host_pid"`      // templated -> bool
	HostNet      string   `json:"host_net"`      // templated -> bool
	Capabilities []string `json:"capabilities,omitempty"` // each templated
	Privileged   string   `json:"privileged"`    // templated -> bool
}

// Resources is the optional resources section of a source package.
type Resources struct {
	CPUs      string `json:"cpus"`       // templated -> uint64
	MemoryMiB string `json:"memory_mib"` // templated -> uint64
}

// SourcePackage is the declarative, on-disk description from spec.md §3.
type SourcePackage struct {
	Title        Title      `json:"title"`
	Description  string     `json:"description"`
	Dependencies []Title    `json:"dependencies,omitempty"`
	Source       Source     `json:"source"`
	Networking   *Networking `json:"networking,omitempty"`
	Storage      *Storage    `json:"storage,omitempty"`
	System       *System     `json:"system,omitempty"`
	Resources    *Resources  `json:"resources,omitempty"`
	Prompts      []Prompt    `json:"prompts,omitempty"`

	// Root is the registry root this record was loaded from, attached at
	// load time by the registry rather than carried by the package itself
	// (design note 4: break the package↔registry cycle).
	Root string `json:"-"`
}

// Equal reports structural equality modulo Root, for the round-trip property
// in spec.md §8.
func (p SourcePackage) Equal(other SourcePackage) bool {
	cp := p
	co := other
	cp.Root, co.Root = "", ""
	return equalJSON(cp, co)
}

// Globals is the per-package-name mapping of host-wide values.
type Globals map[string]string

// PromptResponse is one {template-key, typed-value} pair.
type PromptResponse struct {
	TemplateKey string     `json:"template_key"`
	Value       TypedValue `json:"value"`
}

// CompiledPortForward is a resolved (host, guest) pair.
type CompiledPortForward struct {
	Host  uint64
	Guest uint64
}

// CompiledNetworking is the resolved networking section; always present
// (materialized empty rather than absent), per spec.md §3.
type CompiledNetworking struct {
	Forward  []CompiledPortForward
	Expose   []CompiledPortForward
	Internal string
	Hostname string
}

// CompiledVolume is a resolved storage volume.
type CompiledVolume struct {
	Name       string
	SizeBytes  uint64
	Mountpoint string
	HasMount   bool
	Recreate   bool
	Private    bool
}

// CompiledStorage is the resolved storage section; always present.
type CompiledStorage struct {
	Volumes []CompiledVolume
}

// CompiledSystem is the resolved system section; always present.
type CompiledSystem struct {
	HostPID      bool
	HostNet      bool
	Capabilities []string
	Privileged   bool
}

// CompiledResources is the resolved resources section; always present.
type CompiledResources struct {
	CPUs      uint64
	MemoryMiB uint64
}

// CompiledSource is the resolved source variant.
type CompiledSource struct {
	Kind  SourceKind
	Value string
}

// CompiledPackage is a SourcePackage after two-stage template expansion and
// type coercion (spec.md §4.8); every optional section is materialized.
type CompiledPackage struct {
	Title       Title
	Description string
	Source      CompiledSource
	Networking  CompiledNetworking
	Storage     CompiledStorage
	System      CompiledSystem
	Resources   CompiledResources
}
