package entity

import (
	"time"

	"github.com/google/uuid"
)

// ConflictRecord captures a divergence the resolver could not settle
// automatically. It is consumed by an explicit user choice.
type ConflictRecord struct {
	DocumentId   uuid.UUID
	Remote       Document
	LocalTitle   string
	LocalContent string
	DetectedAt   time.Time
}

type ResolutionChoice string

const (
	// KeepRemote discards the local draft and applies the remote record.
	KeepRemote ResolutionChoice = "keep_remote"
	// KeepLocal discards the remote update; the next autosave cycle will
	// attempt to persist the local version.
	KeepLocal ResolutionChoice = "keep_local"
)
