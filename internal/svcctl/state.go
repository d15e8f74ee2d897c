// Package svcctl wraps the system service manager (spec.md §4.3): unit
// start/stop/reload, unit listing with decoded state, and journal streaming.
// Grounded on the Xuanwo nomad-driver-systemd-nspawn's systemd/systemd.go,
// which drives the same D-Bus surface (github.com/coreos/go-systemd/dbus)
// for unit lifecycle; journal access uses the sibling sdjournal package.
package svcctl

// LoadState is the domain-level load state, decoded from the manager's raw
// load string.
type LoadState string

const (
	LoadLoaded   LoadState = "loaded"
	LoadUnloaded LoadState = "unloaded"
	LoadInactive LoadState = "inactive"
)

// RuntimeState is the domain-level runtime state, decoded from the
// manager's raw active string.
type RuntimeState string

const (
	RuntimeStarted   RuntimeState = "started"
	RuntimeStopped   RuntimeState = "stopped"
	RuntimeReloaded  RuntimeState = "reloaded"
	RuntimeRestarted RuntimeState = "restarted"
)

// LastRunState is the domain-level sub state, decoded from the manager's raw
// sub string.
type LastRunState string

const (
	LastRunFailed    LastRunState = "failed"
	LastRunDead      LastRunState = "dead"
	LastRunMounted   LastRunState = "mounted"
	LastRunRunning   LastRunState = "running"
	LastRunListening LastRunState = "listening"
	LastRunPlugged   LastRunState = "plugged"
	LastRunExited    LastRunState = "exited"
	LastRunActive    LastRunState = "active"
	LastRunWaiting   LastRunState = "waiting"
)

// Design note 6: back-compat enum mapping is table-driven, not a
// hand-written switch per call site.

// loadStateTable maps the manager's raw "LoadState" values to LoadState.
// Entries not present default to LoadInactive via loadStateFor.
var loadStateTable = map[string]LoadState{
	"loaded":       LoadLoaded,
	"not-found":    LoadUnloaded,
	"inactive":     LoadInactive,
}

func loadStateFor(raw string) LoadState {
	if state, ok := loadStateTable[raw]; ok {
		return state
	}
	if len(raw) >= len("auto-restart") && raw[:len("auto-restart")] == "auto-restart" {
		return LoadLoaded
	}
	return LoadInactive
}

// runtimeStartedStrings and runtimeStoppedStrings partition the manager's raw
// "ActiveState" values; anything else maps onto the identically-named
// RuntimeState, per spec.md §4.3.
var runtimeStartedStrings = map[string]bool{
	"running": true, "mounted": true, "listening": true, "plugged": true,
	"active": true, "activating": true,
}

var runtimeStoppedStrings = map[string]bool{
	"inactive": true, "dead": true, "failed": true, "exited": true,
	"waiting": true, "deactivating": true, "maintenance": true,
}

func runtimeStateFor(raw string) RuntimeState {
	if runtimeStartedStrings[raw] {
		return RuntimeStarted
	}
	if runtimeStoppedStrings[raw] {
		return RuntimeStopped
	}
	switch raw {
	case "reloaded":
		return RuntimeReloaded
	case "restarted":
		return RuntimeRestarted
	default:
		return RuntimeStopped
	}
}

// lastRunStateTable is the direct one-to-one mapping of the manager's raw
// "SubState" values to LastRunState, with "auto-restart*" mapped to active.
var lastRunStateTable = map[string]LastRunState{
	"failed":    LastRunFailed,
	"dead":      LastRunDead,
	"mounted":   LastRunMounted,
	"running":   LastRunRunning,
	"listening": LastRunListening,
	"plugged":   LastRunPlugged,
	"exited":    LastRunExited,
	"active":    LastRunActive,
	"waiting":   LastRunWaiting,
}

func lastRunStateFor(raw string) LastRunState {
	if state, ok := lastRunStateTable[raw]; ok {
		return state
	}
	if len(raw) >= len("auto-restart") && raw[:len("auto-restart")] == "auto-restart" {
		return LastRunActive
	}
	return LastRunDead
}

// UnitStatus is the decoded {load, active, sub} triple for one unit.
type UnitStatus struct {
	Load    LoadState
	Runtime RuntimeState
	LastRun LastRunState
}

// decodeState derives the three domain enums from the manager's two raw
// strings, per spec.md §4.3.
func decodeState(rawLoad, rawActive, rawSub string) UnitStatus {
	return UnitStatus{
		Load:    loadStateFor(rawLoad),
		Runtime: runtimeStateFor(rawActive),
		LastRun: lastRunStateFor(rawSub),
	}
}

// Unit is one entry from List.
type Unit struct {
	Name        string
	Description string
	Enabled     bool
	Status      UnitStatus
	ObjectPath  string
}
