package agent

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/trunkctl/trunk/internal/svcctl"
	"github.com/trunkctl/trunk/internal/trunkerr"
	"github.com/trunkctl/trunk/internal/zfs"
)

// Client is a NodeAgent that talks to a Server over a Unix socket,
// grounded on the teacher's MuxClient.doRequest (a shared request helper
// dialing "http://unix"+path over a custom unix-socket Transport).
type Client struct {
	socketPath string
	httpClient *http.Client
}

var _ NodeAgent = (*Client)(nil)

// NewClient returns a Client dialing the node agent's socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *Client) doRequest(ctx context.Context, path string, body, result any) error {
	var reqBody *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return trunkerr.Wrap(trunkerr.KindValidation, err, "failed to encode request")
		}
		reqBody = strings.NewReader(string(data))
	} else {
		reqBody = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://unix"+path, reqBody)
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to build request for %s", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindSubservice, err, "node agent not reachable at %s", c.socketPath)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return trunkerr.New(trunkerr.KindSubservice, "node agent %s: %s", path, errResp.Error)
		}
		return trunkerr.New(trunkerr.KindSubservice, "node agent %s: HTTP %d", path, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return trunkerr.Wrap(trunkerr.KindIO, err, "failed to decode response from %s", path)
		}
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) (PingResult, error) {
	var result PingResult
	err := c.doRequest(ctx, "/ping", nil, &result)
	return result, err
}

func (c *Client) HostInfo(ctx context.Context) (HostInfo, error) {
	var info HostInfo
	err := c.doRequest(ctx, "/host-info", nil, &info)
	return info, err
}

func (c *Client) ExposePort(ctx context.Context, pf PortForward) error {
	return c.doRequest(ctx, "/network/expose-port", pf, nil)
}

func (c *Client) ZFSList(ctx context.Context, pool, filter string) (zfs.Listing, error) {
	var listing zfs.Listing
	err := c.doRequest(ctx, "/zfs/list", map[string]string{"pool": pool, "filter": filter}, &listing)
	return listing, err
}

func (c *Client) ZFSStat(ctx context.Context, pool, name string) (zfs.Stat, error) {
	var stat zfs.Stat
	err := c.doRequest(ctx, "/zfs/stat", zfsPoolNameReq{Pool: pool, Name: name}, &stat)
	return stat, err
}

func (c *Client) ZFSCreateDataset(ctx context.Context, pool, name string, options map[string]string) error {
	return c.doRequest(ctx, "/zfs/create-dataset", map[string]any{"pool": pool, "name": name, "options": options}, nil)
}

func (c *Client) ZFSCreateVolume(ctx context.Context, pool, name string, sizeBytes uint64, options map[string]string) error {
	return c.doRequest(ctx, "/zfs/create-volume", map[string]any{
		"pool": pool, "name": name, "size_bytes": sizeBytes, "options": options,
	}, nil)
}

func (c *Client) ZFSDestroy(ctx context.Context, pool, name string) error {
	return c.doRequest(ctx, "/zfs/destroy", zfsPoolNameReq{Pool: pool, Name: name}, nil)
}

func (c *Client) ZFSRename(ctx context.Context, pool, oldName, newName string) error {
	return c.doRequest(ctx, "/zfs/rename", map[string]string{"pool": pool, "old_name": oldName, "new_name": newName}, nil)
}

func (c *Client) ZFSSet(ctx context.Context, pool, name string, properties map[string]string) error {
	return c.doRequest(ctx, "/zfs/set", map[string]any{"pool": pool, "name": name, "properties": properties}, nil)
}

func (c *Client) ServiceStart(ctx context.Context, objectPath string) error {
	return c.doRequest(ctx, "/service/start", objectPathReq{ObjectPath: objectPath}, nil)
}

func (c *Client) ServiceStop(ctx context.Context, objectPath string) error {
	return c.doRequest(ctx, "/service/stop", objectPathReq{ObjectPath: objectPath}, nil)
}

func (c *Client) ServiceReload(ctx context.Context) error {
	return c.doRequest(ctx, "/service/reload", nil, nil)
}

func (c *Client) ServiceLoadUnit(ctx context.Context, name string) (string, error) {
	var resp struct {
		ObjectPath string `json:"object_path"`
	}
	err := c.doRequest(ctx, "/service/load-unit", map[string]string{"name": name}, &resp)
	return resp.ObjectPath, err
}

func (c *Client) ServiceStatus(ctx context.Context, objectPath string) (svcctl.UnitStatus, error) {
	var status svcctl.UnitStatus
	err := c.doRequest(ctx, "/service/status", objectPathReq{ObjectPath: objectPath}, &status)
	return status, err
}

func (c *Client) ServiceList(ctx context.Context, filter string) ([]svcctl.Unit, error) {
	var units []svcctl.Unit
	err := c.doRequest(ctx, "/service/list", map[string]string{"filter": filter}, &units)
	return units, err
}

// ServiceLog is not available over the socket; see server.go. This
// satisfies the NodeAgent interface but always fails fast rather than
// silently streaming nothing; neither charon nor gild calls it.
func (c *Client) ServiceLog(ctx context.Context, unit string, count int, cursor string, dir svcctl.Direction) (<-chan svcctl.LogEntry, error) {
	return nil, trunkerr.New(trunkerr.KindValidation, "journal streaming is not available over the node-agent socket; use a local agent")
}
