package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/forgeauth/store"
)

const refreshColumns = `id, account_id, token_hash, family_id, expires_at, revoked_at, created_at`

type refreshRow struct {
	ID        string       `db:"id"`
	AccountID string       `db:"account_id"`
	TokenHash string       `db:"token_hash"`
	FamilyID  string       `db:"family_id"`
	ExpiresAt time.Time    `db:"expires_at"`
	RevokedAt sql.NullTime `db:"revoked_at"`
	CreatedAt time.Time    `db:"created_at"`
}

func (r refreshRow) toRecord() store.RefreshToken {
	rec := store.RefreshToken{
		ID:        r.ID,
		AccountID: r.AccountID,
		TokenHash: r.TokenHash,
		FamilyID:  r.FamilyID,
		ExpiresAt: r.ExpiresAt.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.RevokedAt.Valid {
		revokedAt := r.RevokedAt.Time.UTC()
		rec.RevokedAt = &revokedAt
	}
	return rec
}

// CreateRefreshToken checks the family tombstone and inserts under the
// family's advisory lock, which RevokeFamily also takes.
func (s *Store) CreateRefreshToken(ctx context.Context, t store.RefreshToken) (store.RefreshToken, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	var row refreshRow
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockFamily(ctx, tx, t.FamilyID); err != nil {
			return err
		}
		var revoked bool
		if err := tx.GetContext(ctx, &revoked,
			`SELECT EXISTS (SELECT 1 FROM revoked_refresh_families WHERE family_id = $1)`,
			t.FamilyID,
		); err != nil {
			return err
		}
		if revoked {
			return store.ErrFamilyRevoked
		}
		return tx.GetContext(ctx, &row, `
			INSERT INTO refresh_tokens (id, account_id, token_hash, family_id, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+refreshColumns,
			t.ID, t.AccountID, t.TokenHash, t.FamilyID, t.ExpiresAt, t.CreatedAt,
		)
	})
	if err != nil {
		return store.RefreshToken{}, mapErr("create refresh token", err)
	}
	return row.toRecord(), nil
}

// lockFamily takes a transaction-scoped advisory lock keyed by the family id.
func lockFamily(ctx context.Context, tx *sqlx.Tx, familyID string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, familyID)
	return err
}

func (s *Store) FindActiveRefreshToken(ctx context.Context, tokenHash string, now time.Time) (store.RefreshToken, error) {
	var row refreshRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+refreshColumns+` FROM refresh_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2`,
		tokenHash, now,
	)
	if err != nil {
		return store.RefreshToken{}, mapErr("find active refresh token", err)
	}
	return row.toRecord(), nil
}

func (s *Store) ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (store.RefreshToken, error) {
	var row refreshRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
		RETURNING `+refreshColumns,
		tokenHash, now,
	)
	if err != nil {
		return store.RefreshToken{}, mapErr("consume refresh token", err)
	}
	return row.toRecord(), nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, now)
	return mapErr("revoke refresh token", err)
}

// RevokeFamily writes the family tombstone and revokes its live members in
// one transaction. Holding the family lock means the UPDATE sees any
// successor committed before it, and any later insert sees the tombstone.
func (s *Store) RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockFamily(ctx, tx, familyID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO revoked_refresh_families (family_id, revoked_at)
			VALUES ($1, $2)
			ON CONFLICT (family_id) DO NOTHING`,
			familyID, now,
		); err != nil {
			return err
		}
		var err error
		n, err = revokeWhere(ctx, tx, `family_id = $1`, familyID, now)
		return err
	})
	if err != nil {
		return 0, mapErr("revoke family", err)
	}
	return n, nil
}

func (s *Store) RevokeAllForAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	n, err := revokeWhere(ctx, s.db, `account_id = $1`, accountID, now)
	if err != nil {
		return 0, mapErr("revoke all for account", err)
	}
	return n, nil
}

func revokeWhere(ctx context.Context, db sqlx.ExecerContext, predicate, arg string, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2 WHERE `+predicate+` AND revoked_at IS NULL`,
		arg, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
