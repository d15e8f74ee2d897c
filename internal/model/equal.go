package model

import "encoding/json"

// equalJSON compares two values by their canonical JSON encoding. Used only
// for the round-trip test property in spec.md §8, where "equal modulo root"
// is easier to state this way than with a hand-written deep comparison.
func equalJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}
