// Package qmp implements the line-delimited JSON control protocol to a local
// VM monitor socket (spec.md §4.11), used only by charon's VM stop path
// (cmd/charon). Grounded on the teacher's mux_client.go, which
// dials a local Unix socket and decodes JSON responses the same shape.
package qmp

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

// Client is a connected QMP session.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to the monitor socket at path and performs the QMP
// handshake: read the greeting line (ignored on success), send
// qmp_capabilities, and read one response line.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to dial QMP socket %s", path)
	}

	c := &Client{conn: conn, reader: bufio.NewReader(conn)}
	if _, err := c.readLine(); err != nil {
		conn.Close()
		return nil, trunkerr.Wrap(trunkerr.KindSubservice, err, "failed to read QMP greeting")
	}

	if _, err := c.SendCommand("qmp_capabilities", nil); err != nil {
		conn.Close()
		return nil, err
	}

	return c, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) readLine() (map[string]any, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	var decoded map[string]any
	if err := json.Unmarshal(line, &decoded); err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindSubservice, err, "failed to parse QMP response")
	}
	return decoded, nil
}

// SendCommand writes {"execute": name, "arguments": args} followed by a
// newline and reads one response line. A response carrying a "return" key
// is success; one carrying an "error" key is failure.
func (c *Client) SendCommand(name string, args map[string]any) (map[string]any, error) {
	req := map[string]any{"execute": name}
	if args != nil {
		req["arguments"] = args
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to encode QMP command %s", name)
	}
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to write QMP command %s", name)
	}

	resp, err := c.readLine()
	if err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindSubservice, err, "failed to read QMP response for %s", name)
	}
	if errVal, ok := resp["error"]; ok {
		return nil, trunkerr.New(trunkerr.KindSubservice, "QMP command %s failed: %v", name, errVal)
	}
	if _, ok := resp["return"]; !ok {
		return nil, trunkerr.New(trunkerr.KindSubservice, "QMP command %s: unexpected response %v", name, resp)
	}
	return resp, nil
}

// Shutdown requests a graceful guest power-down.
func (c *Client) Shutdown() error {
	_, err := c.SendCommand("system_powerdown", nil)
	return err
}

// Quit forces the VM monitor to exit immediately (hard stop).
func (c *Client) Quit() error {
	_, err := c.SendCommand("quit", nil)
	return err
}
