package flows

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/forgeauth/store"
)

const maxNameRunes = 255

// SignupRequest is the flow-local signup input.
type SignupRequest struct {
	Email    string
	Password string
	Name     string
}

// SignupDeps captures signup flow dependencies.
type SignupDeps struct {
	Hasher   Hasher
	Accounts store.Accounts
	Pair     PairDeps
	Now      func() time.Time
}

// SignupResult carries the new account and its first token pair, or failure
// metadata.
type SignupResult struct {
	Failure FailureKind
	Err     error
	Account store.Account
	Tokens  TokenPair
}

// NormalizeEmail trims and lowercases an address and rejects anything that
// is not a bare addr-spec.
func NormalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}

// RunSignup validates input, creates a password account and issues a pair in
// a new family.
func RunSignup(ctx context.Context, req SignupRequest, deps SignupDeps) SignupResult {
	email, ok := NormalizeEmail(req.Email)
	if !ok {
		return SignupResult{Failure: FailureInvalidInput, Err: errors.New("invalid email")}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameRunes {
		return SignupResult{Failure: FailureInvalidInput, Err: errors.New("invalid name")}
	}
	if err := deps.Hasher.ValidatePolicy(req.Password); err != nil {
		return SignupResult{Failure: FailurePasswordPolicy, Err: err}
	}

	if _, err := deps.Accounts.AccountByEmail(ctx, email); err == nil {
		return SignupResult{Failure: FailureAccountExists, Err: store.ErrDuplicate}
	} else if !errors.Is(err, store.ErrNotFound) {
		return SignupResult{Failure: FailureStorage, Err: err}
	}

	hash, err := deps.Hasher.Hash(req.Password)
	if err != nil {
		return SignupResult{Failure: FailureInternal, Err: err}
	}

	now := deps.Now()
	account, err := deps.Accounts.CreateAccount(ctx, store.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Provider:     store.ProviderEmail,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// Lost a race with a concurrent signup for the same address.
		if errors.Is(err, store.ErrDuplicate) {
			return SignupResult{Failure: FailureAccountExists, Err: err}
		}
		return SignupResult{Failure: FailureStorage, Err: err}
	}

	pair, kind, err := IssuePair(ctx, account.ID, "", deps.Pair)
	if err != nil {
		return SignupResult{Failure: kind, Err: err, Account: account}
	}
	return SignupResult{Account: account, Tokens: pair}
}
