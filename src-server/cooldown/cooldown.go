// Per-applicant registration cooldown.
//
// A Store only remembers when an applicant last registered; the Cooldown
// wrapping it decides whether a new registration is blocked.
package cooldown

import (
	"context"
	"fmt"
	"time"
)

const DefaultPeriod = 24 * time.Hour

type Store interface {
	// Unconditionally sets the last submission time of the applicant.
	RecordSubmission(ctx context.Context, applicantID string, now time.Time) error
	// Returns the last submission time, false if the applicant has no
	// record (or the record already expired for stores with expiry).
	LastSubmission(ctx context.Context, applicantID string) (time.Time, bool, error)
}

type Cooldown struct {
	store  Store
	period time.Duration
}

func New(store Store, period time.Duration) *Cooldown {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Cooldown{store: store, period: period}
}

func (c *Cooldown) Period() time.Duration {
	return c.period
}

func (c *Cooldown) RecordSubmission(ctx context.Context, applicantID string, now time.Time) error {
	if err := c.store.RecordSubmission(ctx, applicantID, now); err != nil {
		return fmt.Errorf("(*Cooldown).RecordSubmission: %w", err)
	}
	return nil
}

func (c *Cooldown) IsBlocked(ctx context.Context, applicantID string, now time.Time) (bool, error) {
	remaining, err := c.TimeRemaining(ctx, applicantID, now)
	if err != nil {
		return false, fmt.Errorf("(*Cooldown).IsBlocked: %w", err)
	}
	return remaining > 0, nil
}

// Time left until the applicant may register again, zero if not blocked.
func (c *Cooldown) TimeRemaining(ctx context.Context, applicantID string, now time.Time) (time.Duration, error) {
	last, ok, err := c.store.LastSubmission(ctx, applicantID)
	if err != nil {
		return 0, fmt.Errorf("(*Cooldown).TimeRemaining: %w", err)
	}
	if !ok {
		return 0, nil
	}
	remaining := c.period - now.Sub(last)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Whole hours and minutes, e.g. "23h 59m". Anything below a minute but
// still positive is shown as "0h 1m" so a blocked applicant never reads 0.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0h 0m"
	}
	minutes := int64(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
