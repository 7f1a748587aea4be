package cooldown

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"regbridge/src-server/model"

	"github.com/uptrace/bun"
)

// SQLite-backed store; rows outlive restarts and are removed by Sweep once
// expired.
type BunStore struct {
	db     bun.IDB
	period time.Duration
}

func NewBunStore(db bun.IDB, period time.Duration) *BunStore {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &BunStore{db: db, period: period}
}

func (b *BunStore) RecordSubmission(ctx context.Context, applicantID string, now time.Time) error {
	cooldownModel := model.Cooldown{
		ApplicantID:         applicantID,
		LastSubmissionMilli: now.UTC().UnixMilli(),
		ExpiresAtMilli:      now.UTC().Add(b.period).UnixMilli(),
	}
	if err := cooldownModel.Upsert(ctx, b.db); err != nil {
		return fmt.Errorf("(*BunStore).RecordSubmission: %w", err)
	}
	return nil
}

func (b *BunStore) LastSubmission(ctx context.Context, applicantID string) (time.Time, bool, error) {
	cooldownModel := new(model.Cooldown)
	if err := b.db.
		NewSelect().
		Model(cooldownModel).
		Where("applicant_id = ?", applicantID).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("(*BunStore).LastSubmission: %w", err)
	}
	return time.UnixMilli(cooldownModel.LastSubmissionMilli).UTC(), true, nil
}

// Deletes every row that expired at or before now, returns how many.
func (b *BunStore) Sweep(ctx context.Context, now time.Time) (int64, error) {
	res, err := b.db.
		NewDelete().
		Model((*model.Cooldown)(nil)).
		Where("expires_at <= ?", now.UTC().UnixMilli()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("(*BunStore).Sweep: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("(*BunStore).Sweep: %w", err)
	}
	return affected, nil
}
