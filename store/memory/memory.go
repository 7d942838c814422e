// Package memory is an in-process implementation of store.Store guarded by a
// single mutex. Conditional operations hold the lock for their whole
// check-and-write, matching the atomicity of the SQL implementation.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/forgeauth/store"
)

// Store keeps all records in maps. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	accounts      map[string]store.Account
	emailIndex    map[string]string
	refreshTokens map[string]*store.RefreshToken
	refreshByHash map[string]string
	revokedFams   map[string]time.Time
	resetTokens   map[string]*store.ResetToken
	resetByHash   map[string]string
	identities    map[identityKey]store.LinkedIdentity
}

type identityKey struct {
	provider string
	userID   string
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts:      make(map[string]store.Account),
		emailIndex:    make(map[string]string),
		refreshTokens: make(map[string]*store.RefreshToken),
		refreshByHash: make(map[string]string),
		revokedFams:   make(map[string]time.Time),
		resetTokens:   make(map[string]*store.ResetToken),
		resetByHash:   make(map[string]string),
		identities:    make(map[identityKey]store.LinkedIdentity),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateAccount(_ context.Context, a store.Account) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(a.Email)
	if _, ok := s.emailIndex[key]; ok {
		return store.Account{}, store.ErrDuplicate
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, ok := s.accounts[a.ID]; ok {
		return store.Account{}, store.ErrDuplicate
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	s.accounts[a.ID] = a
	s.emailIndex[key] = a.ID
	return a, nil
}

func (s *Store) AccountByID(_ context.Context, id string) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) AccountByEmail(_ context.Context, email string) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emailIndex[normalizeEmail(email)]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, accountID, hash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	a.PasswordHash = hash
	a.UpdatedAt = now
	s.accounts[accountID] = a
	return nil
}

func (s *Store) SetActive(_ context.Context, accountID string, active bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	a.Active = active
	a.UpdatedAt = now
	s.accounts[accountID] = a
	return nil
}

func (s *Store) CreateRefreshToken(_ context.Context, t store.RefreshToken) (store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refreshByHash[t.TokenHash]; ok {
		return store.RefreshToken{}, store.ErrDuplicate
	}
	if _, ok := s.revokedFams[t.FamilyID]; ok {
		return store.RefreshToken{}, store.ErrFamilyRevoked
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	rec := t
	s.refreshTokens[t.ID] = &rec
	s.refreshByHash[t.TokenHash] = t.ID
	return t, nil
}

func (s *Store) FindActiveRefreshToken(_ context.Context, tokenHash string, now time.Time) (store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.refreshByHashLocked(tokenHash)
	if rec == nil || !rec.ActiveAt(now) {
		return store.RefreshToken{}, store.ErrNotFound
	}
	return *rec, nil
}

func (s *Store) ConsumeRefreshToken(_ context.Context, tokenHash string, now time.Time) (store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.refreshByHashLocked(tokenHash)
	if rec == nil || !rec.ActiveAt(now) {
		return store.RefreshToken{}, store.ErrNotFound
	}
	revokedAt := now
	rec.RevokedAt = &revokedAt
	return *rec, nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.refreshTokens[id]; ok && rec.RevokedAt == nil {
		revokedAt := now
		rec.RevokedAt = &revokedAt
	}
	return nil
}

func (s *Store) RevokeFamily(_ context.Context, familyID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.revokedFams[familyID]; !ok {
		s.revokedFams[familyID] = now
	}
	return s.revokeWhereLocked(now, func(rec *store.RefreshToken) bool { return rec.FamilyID == familyID }), nil
}

func (s *Store) RevokeAllForAccount(_ context.Context, accountID string, now time.Time) (int64, error) {
	return s.revokeWhere(now, func(rec *store.RefreshToken) bool { return rec.AccountID == accountID }), nil
}

func (s *Store) revokeWhere(now time.Time, match func(*store.RefreshToken) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeWhereLocked(now, match)
}

func (s *Store) revokeWhereLocked(now time.Time, match func(*store.RefreshToken) bool) int64 {
	var n int64
	for _, rec := range s.refreshTokens {
		if rec.RevokedAt == nil && match(rec) {
			revokedAt := now
			rec.RevokedAt = &revokedAt
			n++
		}
	}
	return n
}

func (s *Store) refreshByHashLocked(tokenHash string) *store.RefreshToken {
	id, ok := s.refreshByHash[tokenHash]
	if !ok {
		return nil
	}
	return s.refreshTokens[id]
}

func (s *Store) ReplaceResetToken(_ context.Context, t store.ResetToken, now time.Time) (store.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resetByHash[t.TokenHash]; ok {
		return store.ResetToken{}, store.ErrDuplicate
	}
	for _, rec := range s.resetTokens {
		if rec.AccountID == t.AccountID && rec.UsedAt == nil {
			usedAt := now
			rec.UsedAt = &usedAt
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	rec := t
	s.resetTokens[t.ID] = &rec
	s.resetByHash[t.TokenHash] = t.ID
	return t, nil
}

// RedeemResetToken checks everything before the first write so that a
// failure leaves the token usable.
func (s *Store) RedeemResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (store.ResetToken, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.resetByHash[tokenHash]
	if !ok {
		return store.ResetToken{}, 0, store.ErrNotFound
	}
	rec := s.resetTokens[id]
	if !rec.UsableAt(now) {
		return store.ResetToken{}, 0, store.ErrNotFound
	}
	a, ok := s.accounts[rec.AccountID]
	if !ok {
		return store.ResetToken{}, 0, store.ErrNotFound
	}

	usedAt := now
	rec.UsedAt = &usedAt
	a.PasswordHash = passwordHash
	a.UpdatedAt = now
	s.accounts[a.ID] = a
	revoked := s.revokeWhereLocked(now, func(t *store.RefreshToken) bool { return t.AccountID == a.ID })
	return *rec, revoked, nil
}

func (s *Store) IdentityByProvider(_ context.Context, provider, providerUserID string) (store.LinkedIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	li, ok := s.identities[identityKey{provider: provider, userID: providerUserID}]
	if !ok {
		return store.LinkedIdentity{}, store.ErrNotFound
	}
	return li, nil
}

func (s *Store) LinkIdentity(_ context.Context, li store.LinkedIdentity) (store.LinkedIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey{provider: li.Provider, userID: li.ProviderUserID}
	if _, ok := s.identities[key]; ok {
		return store.LinkedIdentity{}, store.ErrDuplicate
	}
	if _, ok := s.accounts[li.AccountID]; !ok {
		return store.LinkedIdentity{}, store.ErrNotFound
	}
	if li.ID == "" {
		li.ID = uuid.NewString()
	}
	if li.CreatedAt.IsZero() {
		li.CreatedAt = time.Now().UTC()
	}
	s.identities[key] = li
	return li, nil
}

// RefreshTokensForAccount returns copies of every refresh record owned by
// accountID, revoked or not.
func (s *Store) RefreshTokensForAccount(accountID string) []store.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.RefreshToken
	for _, rec := range s.refreshTokens {
		if rec.AccountID == accountID {
			out = append(out, *rec)
		}
	}
	return out
}
