package stats

import (
	"context"
	"log/slog"
	"time"
)

// Origin identifies the chat message an event came from.
type Origin struct {
	UserID    int64
	MessageID int64
	ChannelID int64
	GuildID   *int64
}

type Record struct {
	Event string
	Origin
	Info Info
	At   time.Time
}

type Sink interface {
	InsertEvent(ctx context.Context, rec Record) error
	CountEvents(ctx context.Context, names ...string) (int64, error)
}

type Recorder struct {
	sink Sink
	log  *slog.Logger
	now  func() time.Time
}

func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sink: sink, log: logger, now: time.Now}
}

// Log validates info against the event schema before persisting it. Schema
// errors are returned unwrapped so callers can match them.
func (r *Recorder) Log(ctx context.Context, origin Origin, event string, info Info) error {
	clean, err := Validate(event, info)
	if err != nil {
		r.log.Error("invalid statistics event", "event", event, "err", err)
		return err
	}
	rec := Record{Event: event, Origin: origin, Info: clean, At: r.now()}
	if err := r.sink.InsertEvent(ctx, rec); err != nil {
		r.log.Warn("statistics insert failed", "event", event, "user_id", origin.UserID, "err", err)
		return err
	}
	r.log.Debug("statistics event", "event", event, "user_id", origin.UserID)
	return nil
}

// Count returns how many events with the given names exist; no names counts all.
func (r *Recorder) Count(ctx context.Context, names ...string) (int64, error) {
	return r.sink.CountEvents(ctx, names...)
}
