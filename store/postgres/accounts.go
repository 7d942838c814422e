package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/forgeauth/store"
)

const accountColumns = `id, email, name, avatar_url, password_hash, provider, is_active, is_verified, created_at, updated_at`

type accountRow struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	Name         string         `db:"name"`
	AvatarURL    string         `db:"avatar_url"`
	PasswordHash sql.NullString `db:"password_hash"`
	Provider     string         `db:"provider"`
	Active       bool           `db:"is_active"`
	Verified     bool           `db:"is_verified"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r accountRow) toAccount() store.Account {
	return store.Account{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		AvatarURL:    r.AvatarURL,
		PasswordHash: r.PasswordHash.String,
		Provider:     r.Provider,
		Active:       r.Active,
		Verified:     r.Verified,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func (s *Store) CreateAccount(ctx context.Context, a store.Account) (store.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}

	var row accountRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+accountColumns,
		a.ID, a.Email, a.Name, a.AvatarURL,
		sql.NullString{String: a.PasswordHash, Valid: a.PasswordHash != ""},
		a.Provider, a.Active, a.Verified, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return store.Account{}, mapErr("create account", err)
	}
	return row.toAccount(), nil
}

func (s *Store) AccountByID(ctx context.Context, id string) (store.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	if err != nil {
		return store.Account{}, mapErr("account by id", err)
	}
	return row.toAccount(), nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (store.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return store.Account{}, mapErr("account by email", err)
	}
	return row.toAccount(), nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, hash string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		accountID, hash, now)
	return requireRow("update password hash", res, err)
}

func (s *Store) SetActive(ctx context.Context, accountID string, active bool, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET is_active = $2, updated_at = $3 WHERE id = $1`,
		accountID, active, now)
	return requireRow("set active", res, err)
}

func requireRow(op string, res sql.Result, err error) error {
	if err != nil {
		return mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(op, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
