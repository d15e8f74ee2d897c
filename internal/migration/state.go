// Package migration implements the crash-safe, dependency-aware, idempotent
// step runner from spec.md §4.5. State is persisted as {cursor, failed} at a
// single path, written atomically (write to a .tmp sibling, then rename),
// matching the teacher's atomic-write idiom (default_cloner.go /
// file_ops.go) generalized to a custom in-process stepper rather than the
// teacher's golang-migrate dependency, which migrates SQL schemas rather
// than running arbitrary idempotent steps (see DESIGN.md).
package migration

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

const stateFileName = "vayama.state"

// State is the persisted cursor/failed-set pair.
type State struct {
	Cursor  uint64          `json:"current_state"`
	Failed  map[string]bool `json:"-"`
	FailedList []string     `json:"failed_migrations"`
}

func (s *State) syncFailedList() {
	s.FailedList = s.FailedList[:0]
	for name := range s.Failed {
		s.FailedList = append(s.FailedList, name)
	}
}

func newState() State {
	return State{Failed: map[string]bool{}}
}

// loadState loads the state file at root, falling back to the .tmp sibling
// if the primary is unreadable, else defaulting to a fresh state.
func loadState(root string) (State, error) {
	primary := filepath.Join(root, stateFileName)
	data, err := os.ReadFile(primary)
	if err != nil {
		tmp := primary + ".tmp"
		data, err = os.ReadFile(tmp)
		if err != nil {
			return newState(), nil
		}
	}

	var decoded State
	if err := json.Unmarshal(data, &decoded); err != nil {
		return State{}, trunkerr.Wrap(trunkerr.KindIO, err, "failed to parse migration state")
	}
	decoded.Failed = map[string]bool{}
	for _, name := range decoded.FailedList {
		decoded.Failed[name] = true
	}
	return decoded, nil
}

// saveState writes state atomically: write to a .tmp sibling, then rename.
func saveState(root string, state *State) error {
	state.syncFailedList()
	data, err := json.Marshal(state)
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to encode migration state")
	}

	primary := filepath.Join(root, stateFileName)
	tmp := primary + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to write migration state temp file")
	}
	if err := os.Rename(tmp, primary); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to rename migration state temp file")
	}
	return nil
}
