// Package zfs wraps ZFS dataset/volume/pool lifecycle operations (spec.md
// §4.2). Every operation is synchronous and, except for CreateDataset
// (create, then mount) and Stat (up to three property reads), exactly one
// external command invocation through internal/shim. Grounded on the teacher's applecontainer package, which
// shells out to a CLI and decodes structured JSON output the same way.
package zfs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/trunkctl/trunk/internal/shim"
	"github.com/trunkctl/trunk/internal/trunkerr"
)

// Kind distinguishes a dataset entry from a volume entry in a Listing.
type Kind string

const (
	KindDataset Kind = "dataset"
	KindVolume  Kind = "volume"
)

// Entry is one row of a zfs list.
type Entry struct {
	Name        string
	Kind        Kind
	Pool        string
	CreationTX  uint64
	Used        uint64
	Available   uint64
	Referenced  uint64
	Mountpoint  string // "-" for volumes
}

// Listing is the result of List.
type Listing []Entry

// Stat is the size view returned for a dataset or volume (spec.md §4.2):
// for a volume it's the volsize property; for a dataset it's the quota if
// non-zero, else available.
type Stat struct {
	Name      string
	Kind      Kind
	SizeBytes uint64
}

// Controller is the ZFS contract the node agent (internal/agent.Local)
// depends on.
type Controller interface {
	List(ctx context.Context, pool, filter string) (Listing, error)
	Destroy(ctx context.Context, pool, name string) error
	CreateDataset(ctx context.Context, pool, name string, options map[string]string) error
	CreateVolume(ctx context.Context, pool, name string, sizeBytes uint64, options map[string]string) error
	Rename(ctx context.Context, pool, oldName, newName string) error
	Set(ctx context.Context, pool, name string, properties map[string]string) error
	Get(ctx context.Context, pool, name, property string) (string, error)
	Mount(ctx context.Context, pool string) error
	Unmount(ctx context.Context, pool, name string) error
	Stat(ctx context.Context, pool, name string) (Stat, error)
}

// CLIController invokes the real `zfs` binary via internal/shim.
type CLIController struct{}

// NewCLIController returns the default Controller backed by the `zfs` CLI.
func NewCLIController() *CLIController { return &CLIController{} }

var _ Controller = (*CLIController)(nil)

// zfsListEntry mirrors the subset of `zfs list -j --json-int` output this
// controller consumes; the real command emits considerably more detail.
type zfsListEntry struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Properties map[string]struct {
		Value string `json:"value"`
	} `json:"properties"`
}

type zfsListOutput struct {
	Datasets map[string]zfsListEntry `json:"datasets"`
}

// List invokes `zfs list -j --json-int` and returns every entry whose name
// starts with "<pool>/<filter>", excluding the pool's own root entry.
func (c *CLIController) List(ctx context.Context, pool, filter string) (Listing, error) {
	res, err := shim.Run(ctx, "zfs", "list", "-j", "--json-int", "-r", pool)
	if err != nil {
		return nil, err
	}

	var out zfsListOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to parse zfs list output")
	}

	prefix := pool + "/"
	if filter != "" {
		prefix = pool + "/" + filter
	}

	var listing Listing
	for name, entry := range out.Datasets {
		if name == pool {
			continue // exclude the pool's own root entry
		}
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		kind := KindDataset
		if entry.Type == "volume" {
			kind = KindVolume
		}
		mountpoint := prop(entry, "mountpoint")
		if kind == KindVolume {
			mountpoint = "-"
		}
		listing = append(listing, Entry{
			Name:       name,
			Kind:       kind,
			Pool:       pool,
			CreationTX: parseUint(prop(entry, "createtxg")),
			Used:       parseUint(prop(entry, "used")),
			Available:  parseUint(prop(entry, "available")),
			Referenced: parseUint(prop(entry, "referenced")),
			Mountpoint: mountpoint,
		})
	}
	sort.Slice(listing, func(i, j int) bool { return listing[i].Name < listing[j].Name })
	return listing, nil
}

func prop(e zfsListEntry, key string) string {
	if p, ok := e.Properties[key]; ok {
		return p.Value
	}
	return ""
}

func parseUint(s string) uint64 {
	n, _ := strconv.ParseUint(s, 10, 64)
	return n
}

// Destroy runs `zfs destroy -f pool/name`.
func (c *CLIController) Destroy(ctx context.Context, pool, name string) error {
	_, err := shim.Run(ctx, "zfs", "destroy", "-f", fullName(pool, name))
	return err
}

// CreateDataset runs `zfs create pool/name [-o k=v]*` followed by
// `zfs mount -R pool` so the new dataset is mounted.
func (c *CLIController) CreateDataset(ctx context.Context, pool, name string, options map[string]string) error {
	args := append([]string{"create"}, optionFlags(options)...)
	args = append(args, fullName(pool, name))
	if _, err := shim.Run(ctx, "zfs", args...); err != nil {
		return err
	}
	return c.Mount(ctx, pool)
}

// CreateVolume runs `zfs create -V size pool/name [-o k=v]*`.
func (c *CLIController) CreateVolume(ctx context.Context, pool, name string, sizeBytes uint64, options map[string]string) error {
	args := []string{"create", "-V", strconv.FormatUint(sizeBytes, 10)}
	args = append(args, optionFlags(options)...)
	args = append(args, fullName(pool, name))
	_, err := shim.Run(ctx, "zfs", args...)
	return err
}

// Rename runs `zfs rename -p pool/old pool/new`. The caller is responsible
// for unmounting datasets beforehand and remounting afterward, per spec.md
// §4.2.
func (c *CLIController) Rename(ctx context.Context, pool, oldName, newName string) error {
	_, err := shim.Run(ctx, "zfs", "rename", "-p", fullName(pool, oldName), fullName(pool, newName))
	return err
}

// Set runs `zfs set k=v... pool/name`; a no-op when properties is empty.
func (c *CLIController) Set(ctx context.Context, pool, name string, properties map[string]string) error {
	if len(properties) == 0 {
		return nil
	}
	args := []string{"set"}
	keys := sortedKeys(properties)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%s", k, properties[k]))
	}
	args = append(args, fullName(pool, name))
	_, err := shim.Run(ctx, "zfs", args...)
	return err
}

// Get runs `zfs get -j --json-int property pool/name` and extracts the
// property's value from the structured output.
func (c *CLIController) Get(ctx context.Context, pool, name, property string) (string, error) {
	res, err := shim.Run(ctx, "zfs", "get", "-j", "--json-int", property, fullName(pool, name))
	if err != nil {
		return "", err
	}
	var out zfsListOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return "", trunkerr.Wrap(trunkerr.KindIO, err, "failed to parse zfs get output")
	}
	entry, ok := out.Datasets[fullName(pool, name)]
	if !ok {
		return "", trunkerr.New(trunkerr.KindIO, "zfs get: %s/%s not found in output", pool, name)
	}
	return prop(entry, property), nil
}

// Mount runs `zfs mount -R pool`.
func (c *CLIController) Mount(ctx context.Context, pool string) error {
	_, err := shim.Run(ctx, "zfs", "mount", "-R", pool)
	return err
}

// Unmount runs `zfs unmount -f pool/name`.
func (c *CLIController) Unmount(ctx context.Context, pool, name string) error {
	_, err := shim.Run(ctx, "zfs", "unmount", "-f", fullName(pool, name))
	return err
}

// Stat returns the size view described in spec.md §4.2.
func (c *CLIController) Stat(ctx context.Context, pool, name string) (Stat, error) {
	volsize, err := c.Get(ctx, pool, name, "volsize")
	if err == nil && volsize != "" && volsize != "-" {
		return Stat{Name: name, Kind: KindVolume, SizeBytes: parseUint(volsize)}, nil
	}

	quota, err := c.Get(ctx, pool, name, "quota")
	if err != nil {
		return Stat{}, err
	}
	if q := parseUint(quota); q != 0 {
		return Stat{Name: name, Kind: KindDataset, SizeBytes: q}, nil
	}
	available, err := c.Get(ctx, pool, name, "available")
	if err != nil {
		return Stat{}, err
	}
	return Stat{Name: name, Kind: KindDataset, SizeBytes: parseUint(available)}, nil
}

func fullName(pool, name string) string {
	if name == "" {
		return pool
	}
	return pool + "/" + name
}

func optionFlags(options map[string]string) []string {
	var flags []string
	for _, k := range sortedKeys(options) {
		flags = append(flags, "-o", fmt.Sprintf("%s=%s", k, options[k]))
	}
	return flags
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
