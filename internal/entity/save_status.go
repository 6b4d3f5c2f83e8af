package entity

import "time"

type SaveState string

const (
	SaveStateIdle     SaveState = "idle"
	SaveStateSaving   SaveState = "saving"
	SaveStateSaved    SaveState = "saved"
	SaveStateError    SaveState = "error"
	SaveStateOffline  SaveState = "offline"
	SaveStateConflict SaveState = "conflict"
)

// SaveStatus is the save-path state machine value for one document.
type SaveStatus struct {
	State        SaveState
	LastSaved    *time.Time
	RetryCount   int
	CanRetry     bool
	ErrorMessage string
}

func NewSaveStatus() SaveStatus {
	return SaveStatus{State: SaveStateIdle, CanRetry: true}
}
