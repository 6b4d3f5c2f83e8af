package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document is the client's cached copy of a remote document record.
// UpdatedAt is the server timestamp and the authoritative ordering key
// for conflict decisions.
type Document struct {
	Id        uuid.UUID
	Title     string
	Content   string
	UpdatedAt time.Time
	Pinned    bool
	FolderId  *uuid.UUID
	ProfileId *uuid.UUID
}

type RealtimeAction string

const (
	ActionCreate RealtimeAction = "create"
	ActionUpdate RealtimeAction = "update"
	ActionDelete RealtimeAction = "delete"
)

// RealtimeEvent is the canonical shape of an inbound push notification.
// Delivery is assumed in-order per document id, not globally.
type RealtimeEvent struct {
	Action RealtimeAction
	Record Document
}
