// Package cooldown rate-limits commands per user. The Redis limiter is shared
// across processes; Local covers single-process runs without Redis.
package cooldown

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Limiter starts a cooldown for a user's command. Acquire returns zero when
// the command may run (and starts the cooldown) or the remaining wait when it
// may not.
type Limiter interface {
	Acquire(ctx context.Context, command string, userID int64, period time.Duration) (time.Duration, error)
	Reset(ctx context.Context, command string, userID int64) error
}

func key(command string, userID int64) string {
	return fmt.Sprintf("cooldown:%s:%d", command, userID)
}

// Format renders a wait as "1h 2m 3s", dropping zero units.
func Format(d time.Duration) string {
	total := int(d / time.Second)
	hours, rem := total/3600, total%3600
	minutes, seconds := rem/60, rem%60
	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}

// Local keeps cooldowns in process memory.
type Local struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewLocal() *Local {
	return &Local{until: map[string]time.Time{}, now: time.Now}
}

func (l *Local) Acquire(_ context.Context, command string, userID int64, period time.Duration) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key(command, userID)
	now := l.now()
	if until, ok := l.until[k]; ok && until.After(now) {
		return until.Sub(now), nil
	}
	l.until[k] = now.Add(period)
	return 0, nil
}

func (l *Local) Reset(_ context.Context, command string, userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.until, key(command, userID))
	return nil
}
