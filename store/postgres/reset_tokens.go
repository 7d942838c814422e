package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/forgeauth/store"
)

const resetColumns = `id, account_id, token_hash, expires_at, used_at, created_at`

type resetRow struct {
	ID        string       `db:"id"`
	AccountID string       `db:"account_id"`
	TokenHash string       `db:"token_hash"`
	ExpiresAt time.Time    `db:"expires_at"`
	UsedAt    sql.NullTime `db:"used_at"`
	CreatedAt time.Time    `db:"created_at"`
}

func (r resetRow) toRecord() store.ResetToken {
	rec := store.ResetToken{
		ID:        r.ID,
		AccountID: r.AccountID,
		TokenHash: r.TokenHash,
		ExpiresAt: r.ExpiresAt.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.UsedAt.Valid {
		usedAt := r.UsedAt.Time.UTC()
		rec.UsedAt = &usedAt
	}
	return rec
}

// ReplaceResetToken retires the outstanding tokens of the account and inserts
// t in one transaction. The partial unique index on unused tokens turns a
// concurrent replacement for the same account into ErrDuplicate for the later
// committer instead of leaving two usable tokens.
func (s *Store) ReplaceResetToken(ctx context.Context, t store.ResetToken, now time.Time) (store.ResetToken, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}

	var row resetRow
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE password_reset_tokens SET used_at = $2 WHERE account_id = $1 AND used_at IS NULL`,
			t.AccountID, now,
		); err != nil {
			return err
		}
		return tx.GetContext(ctx, &row, `
			INSERT INTO password_reset_tokens (id, account_id, token_hash, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+resetColumns,
			t.ID, t.AccountID, t.TokenHash, t.ExpiresAt, t.CreatedAt,
		)
	})
	if err != nil {
		return store.ResetToken{}, mapErr("replace reset token", err)
	}
	return row.toRecord(), nil
}

func (s *Store) RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (store.ResetToken, int64, error) {
	var (
		row     resetRow
		revoked int64
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `
			UPDATE password_reset_tokens SET used_at = $2
			WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
			RETURNING `+resetColumns,
			tokenHash, now,
		)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`,
			row.AccountID, passwordHash, now)
		if err := requireRow("update password hash", res, err); err != nil {
			return err
		}

		revoked, err = revokeWhere(ctx, tx, `account_id = $1`, row.AccountID, now)
		return err
	})
	if err != nil {
		return store.ResetToken{}, 0, mapErr("redeem reset token", err)
	}
	return row.toRecord(), revoked, nil
}
