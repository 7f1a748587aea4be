package model

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Last accepted registration per applicant. One row per applicant ID.
type Cooldown struct {
	bun.BaseModel `bun:"table:cooldowns"`

	ApplicantID         string `bun:"applicant_id,pk"`         // required
	LastSubmissionMilli int64  `bun:"last_submission,notnull"` // required
	ExpiresAtMilli      int64  `bun:"expires_at,notnull"`      // required
}

func (c *Cooldown) Upsert(ctx context.Context, db bun.IDB) error {
	if c.ApplicantID == "" {
		return fmt.Errorf("(*Cooldown).Upsert: applicant id is required")
	}

	if _, err := db.NewInsert().
		Model(c).
		On("CONFLICT (applicant_id) DO UPDATE").
		Set("last_submission = EXCLUDED.last_submission").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Cooldown).Upsert: %w", err)
	}

	return nil
}
