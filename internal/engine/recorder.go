package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dishusingla001/door-lock-server/internal/models"
	"github.com/dishusingla001/door-lock-server/internal/observability"
)

// Re-exported so decision code reads without the models prefix.
const (
	OutcomeOpened  = models.OutcomeOpened
	OutcomeDenied  = models.OutcomeDenied
	ChannelQR      = models.ChannelQR
	ChannelFace    = models.ChannelFace
	ChannelManual  = models.ChannelManual
	SubjectUnknown = models.SubjectUnknown
)

// LogAppender is the append-only audit sink, satisfied by the Postgres store.
type LogAppender interface {
	AppendAccessLog(ctx context.Context, entry models.AccessLogEntry) error
}

// EventPublisher fans a recorded decision out to observers (NATS). Optional.
type EventPublisher interface {
	PublishAccess(ctx context.Context, event models.AccessEvent) error
}

// Recorder writes exactly one immutable log entry per verification attempt.
// The decision is already computed by the time Record runs, so a failed write
// is reported and swallowed: decision delivery takes precedence over audit
// durability.
type Recorder struct {
	store     LogAppender
	publisher EventPublisher
}

func NewRecorder(store LogAppender, publisher EventPublisher) *Recorder {
	return &Recorder{store: store, publisher: publisher}
}

func (r *Recorder) Record(ctx context.Context, subject string, outcome models.Outcome, channel models.Channel, confidence, snapshotKey string) {
	now := time.Now().UTC()

	entry := models.AccessLogEntry{
		ID:          uuid.New(),
		SubjectName: subject,
		Outcome:     outcome,
		Channel:     channel,
		Confidence:  confidence,
		SnapshotKey: snapshotKey,
		Timestamp:   now,
	}

	if err := r.store.AppendAccessLog(ctx, entry); err != nil {
		slog.Error("append access log", "error", err, "subject", subject, "channel", channel, "outcome", outcome)
		observability.AuditWriteFailures.Inc()
	}

	observability.AccessDecisions.WithLabelValues(string(channel), string(outcome)).Inc()

	if r.publisher != nil {
		event := models.AccessEvent{
			SubjectName: subject,
			Outcome:     outcome,
			Channel:     channel,
			Confidence:  confidence,
			Timestamp:   now,
		}
		if err := r.publisher.PublishAccess(ctx, event); err != nil {
			slog.Warn("publish access event", "error", err)
		}
	}
}
