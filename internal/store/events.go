package store

import (
	"context"
	"time"

	"pokebot/internal/stats"
)

func (s *Store) InsertEvent(ctx context.Context, rec stats.Record) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO statistics (event_name, user_id, message_id, channel_id, guild_id, information, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.Event, rec.UserID, rec.MessageID, rec.ChannelID, rec.GuildID, map[string]any(rec.Info), at)
	return err
}

func (s *Store) CountEvents(ctx context.Context, names ...string) (int64, error) {
	var n int64
	if len(names) == 0 {
		err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM statistics`).Scan(&n)
		return n, err
	}
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM statistics WHERE event_name = ANY($1)`, names).Scan(&n)
	return n, err
}

// EventCount is one row of the per-event breakdown.
type EventCount struct {
	Event string `json:"event"`
	Count int64  `json:"count"`
}

func (s *Store) EventBreakdown(ctx context.Context, since time.Time) ([]EventCount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT event_name, COUNT(*)
		FROM statistics
		WHERE created_at >= $1
		GROUP BY event_name
		ORDER BY COUNT(*) DESC, event_name
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EventCount
	for rows.Next() {
		var c EventCount
		if err := rows.Scan(&c.Event, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TrainerSummary is the admin view of one trainer.
type TrainerSummary struct {
	UserID    int64          `json:"user_id"`
	Inventory map[string]int `json:"inventory"`
	Owned     int            `json:"owned"`
	Party     int            `json:"party"`
	Seen      int            `json:"seen"`
}

func (s *Store) TrainerSummary(ctx context.Context, userID int64) (TrainerSummary, error) {
	t, err := s.Trainer(ctx, userID)
	if err != nil {
		return TrainerSummary{}, err
	}
	out := TrainerSummary{UserID: t.UserID, Inventory: t.Inventory}
	err = s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM found WHERE owner = $1),
			(SELECT COUNT(*) FROM found WHERE owner = $1 AND party_position IS NOT NULL),
			(SELECT COUNT(*) FROM seen WHERE user_id = $1)
	`, userID).Scan(&out.Owned, &out.Party, &out.Seen)
	return out, err
}
