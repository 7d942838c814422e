package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/forgeauth/store"
)

const identityColumns = `id, account_id, provider, provider_user_id, access_token, created_at`

type identityRow struct {
	ID             string    `db:"id"`
	AccountID      string    `db:"account_id"`
	Provider       string    `db:"provider"`
	ProviderUserID string    `db:"provider_user_id"`
	AccessToken    string    `db:"access_token"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r identityRow) toRecord() store.LinkedIdentity {
	return store.LinkedIdentity{
		ID:             r.ID,
		AccountID:      r.AccountID,
		Provider:       r.Provider,
		ProviderUserID: r.ProviderUserID,
		AccessToken:    r.AccessToken,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func (s *Store) IdentityByProvider(ctx context.Context, provider, providerUserID string) (store.LinkedIdentity, error) {
	var row identityRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+identityColumns+` FROM oauth_accounts
		WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	)
	if err != nil {
		return store.LinkedIdentity{}, mapErr("identity by provider", err)
	}
	return row.toRecord(), nil
}

func (s *Store) LinkIdentity(ctx context.Context, li store.LinkedIdentity) (store.LinkedIdentity, error) {
	if li.ID == "" {
		li.ID = uuid.NewString()
	}
	if li.CreatedAt.IsZero() {
		li.CreatedAt = time.Now().UTC()
	}

	var row identityRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO oauth_accounts (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+identityColumns,
		li.ID, li.AccountID, li.Provider, li.ProviderUserID, li.AccessToken, li.CreatedAt,
	)
	if err != nil {
		return store.LinkedIdentity{}, mapErr("link identity", err)
	}
	return row.toRecord(), nil
}
