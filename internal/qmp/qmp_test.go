package qmp

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
)

// fakeMonitor is a minimal QMP server used to test the handshake and
// command round trip without a real VM monitor process.
func fakeMonitor(t *testing.T, socketPath string, handle func(cmd map[string]any) map[string]any) {
	t.Helper()
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		conn.Write([]byte(`{"QMP": {"version": {}}}` + "\n"))

		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				return
			}
			var cmd map[string]any
			if err := json.Unmarshal(line, &cmd); err != nil {
				return
			}
			resp := handle(cmd)
			data, _ := json.Marshal(resp)
			data = append(data, '\n')
			conn.Write(data)
		}
	}()
}

func TestDialHandshakeAndShutdown(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "qemu-monitor")
	shutdownSent := false

	fakeMonitor(t, socketPath, func(cmd map[string]any) map[string]any {
		switch cmd["execute"] {
		case "qmp_capabilities":
			return map[string]any{"return": map[string]any{}}
		case "system_powerdown":
			shutdownSent = true
			return map[string]any{"return": map[string]any{}}
		default:
			return map[string]any{"error": map[string]any{"desc": "unknown command"}}
		}
	})

	client, err := Dial(context.Background(), socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !shutdownSent {
		t.Errorf("expected system_powerdown to reach the monitor")
	}
}

func TestSendCommandErrorResponse(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "qemu-monitor")
	fakeMonitor(t, socketPath, func(cmd map[string]any) map[string]any {
		if cmd["execute"] == "qmp_capabilities" {
			return map[string]any{"return": map[string]any{}}
		}
		return map[string]any{"error": map[string]any{"desc": "boom"}}
	})

	client, err := Dial(context.Background(), socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if _, err := client.SendCommand("bogus", nil); err == nil {
		t.Errorf("expected error response to surface as an error")
	}
}
