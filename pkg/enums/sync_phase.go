package enums

import "fmt"

// SyncPhase is the coordinator state machine position. Error always resolves to Idle.
type SyncPhase string

const (
	SyncPhaseIdle    SyncPhase = "idle"
	SyncPhaseLoading SyncPhase = "loading"
	SyncPhaseMerging SyncPhase = "merging"
	SyncPhaseError   SyncPhase = "error"
)

var validSyncPhases = []SyncPhase{
	SyncPhaseIdle,
	SyncPhaseLoading,
	SyncPhaseMerging,
	SyncPhaseError,
}

// String implements fmt.Stringer.
func (s SyncPhase) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SyncPhase.
func (s SyncPhase) IsValid() bool {
	for _, candidate := range validSyncPhases {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSyncPhase converts raw input into a SyncPhase.
func ParseSyncPhase(value string) (SyncPhase, error) {
	for _, candidate := range validSyncPhases {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync phase %q", value)
}
