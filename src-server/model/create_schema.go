package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

func CreateSchema(ctx context.Context, db *bun.DB) error {
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{
			(*Cooldown)(nil),
			(*Decision)(nil),
		} {
			if _, err := tx.
				NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}
		if _, err := tx.
			NewCreateIndex().
			Model((*Cooldown)(nil)).
			Index("cooldowns_expires_at_idx").
			Column("expires_at").
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("CreateSchema: %w", err)
	}

	return nil
}
