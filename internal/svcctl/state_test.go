package svcctl

import "testing"

func TestDecodeState(t *testing.T) {
	tests := []struct {
		name                       string
		rawLoad, rawActive, rawSub string
		want                       UnitStatus
	}{
		{
			name: "running service", rawLoad: "loaded", rawActive: "active", rawSub: "running",
			want: UnitStatus{Load: LoadLoaded, Runtime: RuntimeStarted, LastRun: LastRunRunning},
		},
		{
			name: "not found", rawLoad: "not-found", rawActive: "inactive", rawSub: "dead",
			want: UnitStatus{Load: LoadUnloaded, Runtime: RuntimeStopped, LastRun: LastRunDead},
		},
		{
			name: "auto-restarting", rawLoad: "auto-restart", rawActive: "activating", rawSub: "auto-restart",
			want: UnitStatus{Load: LoadLoaded, Runtime: RuntimeStarted, LastRun: LastRunActive},
		},
		{
			name: "failed exit", rawLoad: "loaded", rawActive: "failed", rawSub: "failed",
			want: UnitStatus{Load: LoadLoaded, Runtime: RuntimeStopped, LastRun: LastRunFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeState(tt.rawLoad, tt.rawActive, tt.rawSub)
			if got != tt.want {
				t.Errorf("decodeState(%q,%q,%q) = %+v, want %+v", tt.rawLoad, tt.rawActive, tt.rawSub, got, tt.want)
			}
		})
	}
}
