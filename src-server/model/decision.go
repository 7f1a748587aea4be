package model

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type DecisionAction string

const (
	DECISION_ACTION_ACCEPT = DecisionAction("accept")
	DECISION_ACTION_DENY   = DecisionAction("deny")
)

// A staff decision on one review prompt. Written before the applicant is
// notified so a re-click after a partial failure can resume instead of
// granting the role twice.
type Decision struct {
	bun.BaseModel `bun:"table:decisions"`

	MessageID   string         `bun:"message_id,pk"`               // required
	ApplicantID string         `bun:"applicant_id,notnull"`        // required
	Action      DecisionAction `bun:"action,notnull,type:varchar"` // required
	StaffID     string         `bun:"staff_id,notnull"`            // required
	RoleGranted bool           `bun:"role_granted,notnull"`
	Notified    bool           `bun:"notified,notnull"`
	CreatedAt   time.Time      `bun:"created_at,notnull"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull"`
}

func (d *Decision) Upsert(ctx context.Context, db bun.IDB) error {
	switch {
	case d.MessageID == "":
		return fmt.Errorf("(*Decision).Upsert: message id is required")
	case d.ApplicantID == "":
		return fmt.Errorf("(*Decision).Upsert: applicant id is required")
	case d.Action != DECISION_ACTION_ACCEPT && d.Action != DECISION_ACTION_DENY:
		return fmt.Errorf("(*Decision).Upsert: invalid action %q", d.Action)
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	if _, err := db.NewInsert().
		Model(d).
		On("CONFLICT (message_id) DO UPDATE").
		Set("role_granted = EXCLUDED.role_granted").
		Set("notified = EXCLUDED.notified").
		Set("staff_id = EXCLUDED.staff_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Decision).Upsert: %w", err)
	}

	return nil
}
