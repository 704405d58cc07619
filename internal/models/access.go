package models

import (
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeOpened Outcome = "opened"
	OutcomeDenied Outcome = "denied"
)

type Channel string

const (
	ChannelQR     Channel = "qr"
	ChannelFace   Channel = "face"
	ChannelManual Channel = "manual"
)

// SubjectUnknown is logged when a verification attempt could not be tied
// to an enrolled identity.
const SubjectUnknown = "Unknown"

// AccessLogEntry is one immutable audit record. Exactly one entry is written
// per QR/face verification attempt, whatever the outcome.
type AccessLogEntry struct {
	ID          uuid.UUID `json:"id" db:"id"`
	SubjectName string    `json:"subject_name" db:"subject_name"`
	Outcome     Outcome   `json:"outcome" db:"outcome"`
	Channel     Channel   `json:"channel" db:"channel"`
	Confidence  string    `json:"confidence,omitempty" db:"confidence"`
	SnapshotKey string    `json:"snapshot_key,omitempty" db:"snapshot_key"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}

// AccessEvent is the message published to NATS after a decision is recorded,
// consumed by the API service for WebSocket broadcast.
type AccessEvent struct {
	SubjectName string    `json:"subject_name"`
	Outcome     Outcome   `json:"outcome"`
	Channel     Channel   `json:"channel"`
	Confidence  string    `json:"confidence,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
