package svcctl

import (
	"context"
	"fmt"

	sysdbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/trunkctl/trunk/internal/trunkerr"
)

// Controller is the system service manager contract the installer and
// node-agent RPC surface depend on.
type Controller interface {
	Start(ctx context.Context, objectPath string) error
	Stop(ctx context.Context, objectPath string) error
	Restart(ctx context.Context, objectPath string) error
	ReloadUnit(ctx context.Context, objectPath string) error
	Reload(ctx context.Context) error
	LoadUnit(ctx context.Context, name string) (string, error)
	Status(ctx context.Context, objectPath string) (UnitStatus, error)
	List(ctx context.Context, filter string) ([]Unit, error)
	Log(ctx context.Context, unit string, count int, cursor string, dir Direction) (<-chan LogEntry, error)
}

// DBusController drives the real system service manager over its D-Bus
// control interface, grounded on the Xuanwo nspawn driver's
// systemd/systemd.go. Unlike that driver's package-level dbusConn, it opens
// a new system bus connection for each call.
type DBusController struct{}

// NewDBusController returns the default Controller.
func NewDBusController() *DBusController { return &DBusController{} }

var _ Controller = (*DBusController)(nil)

func (c *DBusController) conn(ctx context.Context) (*sysdbus.Conn, error) {
	conn, err := sysdbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, trunkerr.Subservice("connect to service manager", err)
	}
	return conn, nil
}

// Start starts the unit at objectPath and waits for the job to complete.
func (c *DBusController) Start(ctx context.Context, objectPath string) error {
	return c.runJob(ctx, func(conn *sysdbus.Conn, ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, objectPath, "replace", ch)
	})
}

// Stop stops the unit at objectPath and waits for the job to complete.
func (c *DBusController) Stop(ctx context.Context, objectPath string) error {
	return c.runJob(ctx, func(conn *sysdbus.Conn, ch chan<- string) (int, error) {
		return conn.StopUnitContext(ctx, objectPath, "replace", ch)
	})
}

// Restart restarts the unit at objectPath and waits for the job to complete.
func (c *DBusController) Restart(ctx context.Context, objectPath string) error {
	return c.runJob(ctx, func(conn *sysdbus.Conn, ch chan<- string) (int, error) {
		return conn.RestartUnitContext(ctx, objectPath, "replace", ch)
	})
}

// ReloadUnit asks the unit at objectPath to reload its configuration.
func (c *DBusController) ReloadUnit(ctx context.Context, objectPath string) error {
	return c.runJob(ctx, func(conn *sysdbus.Conn, ch chan<- string) (int, error) {
		return conn.ReloadUnitContext(ctx, objectPath, "replace", ch)
	})
}

func (c *DBusController) runJob(ctx context.Context, start func(*sysdbus.Conn, chan<- string) (int, error)) error {
	conn, err := c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := make(chan string, 1)
	if _, err := start(conn, ch); err != nil {
		return trunkerr.Subservice("service manager job", err)
	}
	select {
	case result := <-ch:
		if result != "done" {
			return trunkerr.New(trunkerr.KindSubservice, "service manager job finished with result %q", result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload reloads the manager's own unit configuration (manager-wide).
func (c *DBusController) Reload(ctx context.Context) error {
	conn, err := c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.ReloadContext(ctx); err != nil {
		return trunkerr.Subservice("reload service manager", err)
	}
	return nil
}

// LoadUnit loads name if not already loaded and returns its object path.
func (c *DBusController) LoadUnit(ctx context.Context, name string) (string, error) {
	conn, err := c.conn(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	path, err := conn.GetUnitContext(ctx, name)
	if err != nil {
		return "", trunkerr.Subservice(fmt.Sprintf("load unit %s", name), err)
	}
	return string(path), nil
}

// Status queries the {load_state, active_state, sub_state} triple for the
// unit at objectPath and decodes it into the domain enums.
func (c *DBusController) Status(ctx context.Context, objectPath string) (UnitStatus, error) {
	conn, err := c.conn(ctx)
	if err != nil {
		return UnitStatus{}, err
	}
	defer conn.Close()

	props, err := conn.GetUnitPropertiesContext(ctx, objectPath)
	if err != nil {
		return UnitStatus{}, trunkerr.Subservice("query unit properties", err)
	}

	return decodeState(
		stringProp(props, "LoadState"),
		stringProp(props, "ActiveState"),
		stringProp(props, "SubState"),
	), nil
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// List returns every unit whose name contains filter (empty filter lists
// all units), with decoded state, enabled flag, and object path.
func (c *DBusController) List(ctx context.Context, filter string) ([]Unit, error) {
	conn, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	statuses, err := conn.ListUnitsContext(ctx)
	if err != nil {
		return nil, trunkerr.Subservice("list units", err)
	}

	var units []Unit
	for _, s := range statuses {
		if filter != "" && !contains(s.Name, filter) {
			continue
		}
		unitFileState, _ := conn.GetUnitPropertyContext(ctx, s.Name, "UnitFileState")
		enabled := false
		if unitFileState != nil {
			if v, ok := unitFileState.Value.Value().(string); ok {
				enabled = v == "enabled"
			}
		}
		units = append(units, Unit{
			Name:        s.Name,
			Description: s.Description,
			Enabled:     enabled,
			Status:      decodeState(s.LoadState, s.ActiveState, s.SubState),
			ObjectPath:  string(s.Path),
		})
	}
	return units, nil
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
