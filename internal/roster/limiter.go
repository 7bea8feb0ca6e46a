// Package roster enforces per-level roster caps.
//
// A cap bounds how many distinct players an organization may field at one
// competitive level: contracts that are active, held by the org, and not on
// the injured list. Levels without a configured cap are unbounded.
package roster

import (
	"context"
	"fmt"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
)

// ErrRosterLimitExceeded is returned when a move would push an
// organization's active roster at a level beyond its cap.
var ErrRosterLimitExceeded = fmt.Errorf("%w: roster limit exceeded", model.ErrValidation)

// Counter reports how many players an organization currently fields at a
// level. store.Querier satisfies it.
type Counter interface {
	CountHeldAtLevel(ctx context.Context, orgID int64, level int) (int, error)
}

// Limiter holds the configured caps.
type Limiter struct {
	limits map[int]int
}

// NewLimiter creates a limiter from a level → max map. A nil or empty map
// disables every check.
func NewLimiter(limits map[int]int) *Limiter {
	copied := make(map[int]int, len(limits))
	for level, max := range limits {
		copied[level] = max
	}
	return &Limiter{limits: copied}
}

// Limit returns the cap for level, if any.
func (l *Limiter) Limit(level int) (int, bool) {
	if l == nil {
		return 0, false
	}
	max, ok := l.limits[level]
	return max, ok
}

// CheckLimit validates that adding one player at level keeps current within
// the cap.
func (l *Limiter) CheckLimit(level, current int) error {
	max, ok := l.Limit(level)
	if !ok {
		return nil
	}
	if current+1 > max {
		return fmt.Errorf("%w: level %d has %d of %d", ErrRosterLimitExceeded, level, current, max)
	}
	return nil
}

// CheckAdd counts the org's roster at level and validates one more player.
func (l *Limiter) CheckAdd(ctx context.Context, c Counter, orgID int64, level int) error {
	if _, ok := l.Limit(level); !ok {
		return nil
	}
	n, err := c.CountHeldAtLevel(ctx, orgID, level)
	if err != nil {
		return fmt.Errorf("count roster: %w", err)
	}
	return l.CheckLimit(level, n)
}
