package metric

import (
	"context"
	"time"

	"regbridge/src-server/model"

	"github.com/uptrace/bun"
)

func database(db bun.IDB) (time.Duration, error) {
	start := time.Now()
	if _, err := db.NewSelect().
		Model((*model.Cooldown)(nil)).
		Where("applicant_id = ?", "").
		Exists(context.Background()); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
