package flows

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/forgeauth/internal"
	"github.com/MrEthical07/forgeauth/internal/stores"
	"github.com/MrEthical07/forgeauth/jwt"
	"github.com/MrEthical07/forgeauth/oauth"
	"github.com/MrEthical07/forgeauth/password"
	"github.com/MrEthical07/forgeauth/store"
	"github.com/MrEthical07/forgeauth/store/memory"
)

type harness struct {
	store  *memory.Store
	codec  *jwt.Manager
	hasher *password.Argon2
	mailer *captureMailer
	states *stores.OAuthStateStore
	deps   Deps
}

func testHasher(t *testing.T, mem uint32) *password.Argon2 {
	t.Helper()
	cfg := password.DefaultConfig()
	cfg.Memory = mem
	cfg.Time = 1
	cfg.Parallelism = 1
	h, err := password.NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	codec, err := jwt.NewManager(jwt.Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(strings.Repeat("k", 32)),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		store:  memory.New(),
		codec:  codec,
		hasher: testHasher(t, 8192),
		mailer: &captureMailer{},
		states: stores.NewOAuthStateStore(rdb, ""),
	}

	pair := PairDeps{Codec: codec, RefreshTokens: h.store, Now: time.Now}
	identity := IdentityDeps{
		Accounts:             h.store,
		Identities:           h.store,
		RequireVerifiedEmail: true,
		Now:                  time.Now,
	}
	h.deps = Deps{
		Signup: SignupDeps{Hasher: h.hasher, Accounts: h.store, Pair: pair, Now: time.Now},
		Login:  LoginDeps{Hasher: h.hasher, Accounts: h.store, Pair: pair, Now: time.Now},
		Refresh: RefreshDeps{
			Codec:         codec,
			Accounts:      h.store,
			RefreshTokens: h.store,
			Pair:          pair,
			Now:           time.Now,
		},
		Logout: LogoutDeps{Codec: codec, RefreshTokens: h.store, Now: time.Now},
		ResetRequest: ResetRequestDeps{
			Accounts:    h.store,
			ResetTokens: h.store,
			Mailer:      h.mailer,
			TokenTTL:    time.Hour,
			FrontendURL: "https://app.example",
			NewToken:    internal.NewResetToken,
			Now:         time.Now,
		},
		ResetConfirm: ResetConfirmDeps{
			Hasher:      h.hasher,
			ResetTokens: h.store,
			Now:         time.Now,
		},
		OAuth: OAuthDeps{
			States:   h.states,
			StateTTL: 10 * time.Minute,
			NewState: internal.NewOAuthState,
			Identity: identity,
			Pair:     pair,
			Now:      time.Now,
		},
		Validate:      ValidateDeps{Codec: codec, Accounts: h.store},
		AccountStatus: AccountStatusDeps{Accounts: h.store, RefreshTokens: h.store, Now: time.Now},
	}
	return h
}

func (h *harness) signup(t *testing.T, email, pass string) SignupResult {
	t.Helper()
	res := RunSignup(context.Background(), SignupRequest{Email: email, Password: pass, Name: "Alice"}, h.deps.Signup)
	if res.Failure != FailureNone {
		t.Fatalf("signup failed: %v (%v)", res.Failure, res.Err)
	}
	return res
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

type sentMail struct {
	to, subject, body string
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return m.err
}

func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail sent")
	}
	body := m.sent[len(m.sent)-1].body
	start := strings.Index(body, "token=")
	if start < 0 {
		t.Fatalf("no token in body %q", body)
	}
	rest := body[start+len("token="):]
	end := strings.IndexByte(rest, '"')
	raw, err := url.QueryUnescape(rest[:end])
	if err != nil {
		t.Fatalf("unescape: %v", err)
	}
	return raw
}

func TestSignupIssuesDecodablePairInFreshFamily(t *testing.T) {
	h := newHarness(t)
	res := h.signup(t, " Alice@Example.com ", "correct horse")

	if res.Account.Email != "alice@example.com" || res.Account.Provider != store.ProviderEmail {
		t.Fatalf("unexpected account %+v", res.Account)
	}
	access, err := h.codec.Decode(res.Tokens.AccessToken)
	if err != nil || access.Type != jwt.TypeAccess || access.AccountID() != res.Account.ID {
		t.Fatalf("bad access token: %+v %v", access, err)
	}
	refresh, err := h.codec.Decode(res.Tokens.RefreshToken)
	if err != nil || refresh.Type != jwt.TypeRefresh || refresh.FamilyID != res.Tokens.FamilyID {
		t.Fatalf("bad refresh token: %+v %v", refresh, err)
	}
	if res.Tokens.ExpiresIn != 15*time.Minute {
		t.Fatalf("unexpected expires in %v", res.Tokens.ExpiresIn)
	}
	if recs := h.store.RefreshTokensForAccount(res.Account.ID); len(recs) != 1 || recs[0].TokenHash != internal.HashToken(res.Tokens.RefreshToken) {
		t.Fatalf("expected one persisted hash, got %+v", recs)
	}
}

func TestSignupRejectsDuplicateAndBadInput(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "alice@example.com", "correct horse")

	cases := []struct {
		name string
		req  SignupRequest
		want FailureKind
	}{
		{"duplicate", SignupRequest{Email: "ALICE@example.com", Password: "correct horse", Name: "A"}, FailureAccountExists},
		{"bad email", SignupRequest{Email: "not-an-email", Password: "correct horse", Name: "A"}, FailureInvalidInput},
		{"display name email", SignupRequest{Email: "Bob <bob@example.com>", Password: "correct horse", Name: "B"}, FailureInvalidInput},
		{"empty name", SignupRequest{Email: "bob@example.com", Password: "correct horse", Name: "  "}, FailureInvalidInput},
		{"short password", SignupRequest{Email: "bob@example.com", Password: "short", Name: "B"}, FailurePasswordPolicy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := RunSignup(context.Background(), tc.req, h.deps.Signup)
			if res.Failure != tc.want {
				t.Fatalf("expected %v, got %v (%v)", tc.want, res.Failure, res.Err)
			}
		})
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "alice@example.com", "correct horse")
	_, _ = h.store.CreateAccount(context.Background(), store.Account{Email: "oauth@example.com", Provider: store.ProviderGitHub, Active: true})

	for _, req := range []LoginRequest{
		{Email: "alice@example.com", Password: "wrong horse"},
		{Email: "nobody@example.com", Password: "correct horse"},
		{Email: "oauth@example.com", Password: "correct horse"},
	} {
		res := RunLogin(context.Background(), req, h.deps.Login)
		if res.Failure != FailureInvalidCredentials {
			t.Fatalf("%s: expected invalid credentials, got %v", req.Email, res.Failure)
		}
	}
}

func TestLoginNewFamilyEachTime(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")

	res := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct horse"}, h.deps.Login)
	if res.Failure != FailureNone {
		t.Fatalf("login failed: %v (%v)", res.Failure, res.Err)
	}
	if res.Tokens.FamilyID == signup.Tokens.FamilyID {
		t.Fatal("login must start a new family")
	}
}

func TestLoginDisabledOnlyAfterPasswordCheck(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")
	_ = h.store.SetActive(context.Background(), signup.Account.ID, false, time.Now())

	wrong := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "wrong horse"}, h.deps.Login)
	if wrong.Failure != FailureInvalidCredentials {
		t.Fatalf("expected invalid credentials for wrong password, got %v", wrong.Failure)
	}
	right := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct horse"}, h.deps.Login)
	if right.Failure != FailureAccountDisabled {
		t.Fatalf("expected account disabled, got %v", right.Failure)
	}
}

func TestLoginRehashesWeakHash(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")

	deps := h.deps.Login
	deps.Hasher = testHasher(t, 16384)
	res := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct horse"}, deps)
	if res.Failure != FailureNone || !res.Rehashed {
		t.Fatalf("expected rehash on login, got %v rehashed=%v", res.Failure, res.Rehashed)
	}

	account, _ := h.store.AccountByID(context.Background(), signup.Account.ID)
	if account.PasswordHash == signup.Account.PasswordHash || !strings.Contains(account.PasswordHash, "m=16384") {
		t.Fatalf("hash not upgraded: %s", account.PasswordHash)
	}
}

type stubLimiter struct {
	checkErr error
	failures int
	resets   int
}

func (l *stubLimiter) CheckLogin(context.Context, string, string) error { return l.checkErr }
func (l *stubLimiter) IncrementLogin(context.Context, string, string) error {
	l.failures++
	return nil
}
func (l *stubLimiter) ResetLogin(context.Context, string) error {
	l.resets++
	return nil
}

func TestLoginRateLimiterWiring(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "alice@example.com", "correct horse")

	lim := &stubLimiter{}
	deps := h.deps.Login
	deps.RateLimiter = lim

	RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "wrong horse"}, deps)
	RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct horse"}, deps)
	if lim.failures != 1 || lim.resets != 1 {
		t.Fatalf("unexpected limiter calls: %+v", lim)
	}

	lim.checkErr = errors.New("redis down")
	if res := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct horse"}, deps); res.Failure != FailureNone {
		t.Fatalf("limiter outage must not block login, got %v", res.Failure)
	}
}

func TestRefreshRotatesWithinFamily(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")

	res := RunRefresh(context.Background(), signup.Tokens.RefreshToken, h.deps.Refresh)
	if res.Failure != FailureNone {
		t.Fatalf("refresh failed: %v (%v)", res.Failure, res.Err)
	}
	if res.Tokens.FamilyID != signup.Tokens.FamilyID {
		t.Fatal("rotation must keep the family")
	}
	if res.Tokens.RefreshToken == signup.Tokens.RefreshToken {
		t.Fatal("rotation must mint a new token")
	}
}

func TestRefreshReplayRevokesFamily(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")
	first := RunRefresh(context.Background(), signup.Tokens.RefreshToken, h.deps.Refresh)

	replay := RunRefresh(context.Background(), signup.Tokens.RefreshToken, h.deps.Refresh)
	if replay.Failure != FailureReplayDetected {
		t.Fatalf("expected replay detection, got %v", replay.Failure)
	}
	if replay.FamilyRevoked != 1 {
		t.Fatalf("expected the successor to be revoked, got %d", replay.FamilyRevoked)
	}

	successor := RunRefresh(context.Background(), first.Tokens.RefreshToken, h.deps.Refresh)
	if successor.Failure != FailureReplayDetected {
		t.Fatalf("expected successor to be dead, got %v", successor.Failure)
	}
}

// replayBeforeInsert runs the losing holder's family revocation between the
// winner's consume and its successor insert.
type replayBeforeInsert struct {
	store.RefreshTokens
}

func (r replayBeforeInsert) CreateRefreshToken(ctx context.Context, t store.RefreshToken) (store.RefreshToken, error) {
	if _, err := r.RevokeFamily(ctx, t.FamilyID, time.Now()); err != nil {
		return store.RefreshToken{}, err
	}
	return r.RefreshTokens.CreateRefreshToken(ctx, t)
}

func TestRefreshSuccessorRefusedAfterConcurrentReplay(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")

	deps := h.deps.Refresh
	deps.Pair.RefreshTokens = replayBeforeInsert{h.store}

	res := RunRefresh(context.Background(), signup.Tokens.RefreshToken, deps)
	if res.Failure != FailureReplayDetected {
		t.Fatalf("expected the winner to see the replay, got %v (%v)", res.Failure, res.Err)
	}
	if res.Tokens.RefreshToken != "" {
		t.Fatal("no successor may be handed out for a revoked family")
	}

	_, err := h.store.CreateRefreshToken(context.Background(), store.RefreshToken{
		AccountID: signup.Account.ID,
		TokenHash: "late-successor",
		FamilyID:  signup.Tokens.FamilyID,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if !errors.Is(err, store.ErrFamilyRevoked) {
		t.Fatalf("expected the revoked family to stay closed, got %v", err)
	}
}

func TestRefreshRejectsAccessAndGarbage(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")

	if res := RunRefresh(context.Background(), signup.Tokens.AccessToken, h.deps.Refresh); res.Failure != FailureInvalidTokenType {
		t.Fatalf("expected invalid token type, got %v", res.Failure)
	}
	if res := RunRefresh(context.Background(), "garbage", h.deps.Refresh); res.Failure != FailureTokenInvalid {
		t.Fatalf("expected token invalid, got %v", res.Failure)
	}
	// Neither attempt may touch the family.
	if res := RunRefresh(context.Background(), signup.Tokens.RefreshToken, h.deps.Refresh); res.Failure != FailureNone {
		t.Fatalf("expected family intact, got %v", res.Failure)
	}
}

func TestRefreshDisabledAccountConsumesToken(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")
	_ = h.store.SetActive(context.Background(), signup.Account.ID, false, time.Now())

	res := RunRefresh(context.Background(), signup.Tokens.RefreshToken, h.deps.Refresh)
	if res.Failure != FailureAccountDisabled {
		t.Fatalf("expected account disabled, got %v", res.Failure)
	}
	if _, err := h.store.FindActiveRefreshToken(context.Background(), internal.HashToken(signup.Tokens.RefreshToken), time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected record revoked, got %v", err)
	}
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")

	const n = 8
	results := make([]RefreshResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = RunRefresh(context.Background(), signup.Tokens.RefreshToken, h.deps.Refresh)
		}(i)
	}
	wg.Wait()

	var wins []RefreshResult
	for _, r := range results {
		switch r.Failure {
		case FailureNone:
			wins = append(wins, r)
		case FailureReplayDetected:
		default:
			t.Fatalf("unexpected failure %v", r.Failure)
		}
	}
	if len(wins) > 1 {
		t.Fatalf("expected at most one winner, got %d", len(wins))
	}
	for _, w := range wins {
		if again := RunRefresh(context.Background(), w.Tokens.RefreshToken, h.deps.Refresh); again.Failure != FailureReplayDetected {
			t.Fatalf("winner's successor must be revoked with the family, got %v", again.Failure)
		}
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")

	first := RunLogout(context.Background(), signup.Tokens.RefreshToken, h.deps.Logout)
	if first.Failure != FailureNone || !first.Revoked {
		t.Fatalf("expected revocation, got %+v", first)
	}
	second := RunLogout(context.Background(), signup.Tokens.RefreshToken, h.deps.Logout)
	if second.Failure != FailureNone || second.Revoked {
		t.Fatalf("expected no-op, got %+v", second)
	}
	if res := RunLogout(context.Background(), "garbage", h.deps.Logout); res.Failure != FailureNone {
		t.Fatalf("garbage logout must succeed, got %v", res.Failure)
	}
}

func TestResetRequestUnknownEmailIsSilent(t *testing.T) {
	h := newHarness(t)
	delayed := 0
	deps := h.deps.ResetRequest
	deps.Delay = func() time.Duration {
		delayed++
		return time.Millisecond
	}

	res := RunRequestPasswordReset(context.Background(), "ghost@example.com", deps)
	if res.Failure != FailureNone || res.Issued {
		t.Fatalf("unexpected result %+v", res)
	}
	if delayed != 1 || len(h.mailer.sent) != 0 {
		t.Fatalf("expected delay and no mail, delayed=%d sent=%d", delayed, len(h.mailer.sent))
	}
}

func TestResetSupersedesAndIsSingleUse(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")

	RunRequestPasswordReset(context.Background(), "alice@example.com", h.deps.ResetRequest)
	first := h.mailer.lastToken(t)
	RunRequestPasswordReset(context.Background(), "alice@example.com", h.deps.ResetRequest)
	second := h.mailer.lastToken(t)

	if res := RunConfirmPasswordReset(context.Background(), first, "new password 1", h.deps.ResetConfirm); res.Failure != FailureInvalidResetToken {
		t.Fatalf("superseded token must fail, got %v", res.Failure)
	}
	res := RunConfirmPasswordReset(context.Background(), second, "new password 1", h.deps.ResetConfirm)
	if res.Failure != FailureNone || res.Revoked != 1 {
		t.Fatalf("expected success revoking the signup token, got %+v", res)
	}
	if res := RunConfirmPasswordReset(context.Background(), second, "new password 2", h.deps.ResetConfirm); res.Failure != FailureInvalidResetToken {
		t.Fatalf("reused token must fail, got %v", res.Failure)
	}

	if r := RunRefresh(context.Background(), signup.Tokens.RefreshToken, h.deps.Refresh); r.Failure == FailureNone {
		t.Fatal("sessions must be revoked after reset")
	}
	if r := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "new password 1"}, h.deps.Login); r.Failure != FailureNone {
		t.Fatalf("login with new password failed: %v", r.Failure)
	}
}

func TestResetDeliveryFailureIsReportedNotFailed(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "alice@example.com", "correct horse")
	h.mailer.err = errors.New("smtp down")

	res := RunRequestPasswordReset(context.Background(), "alice@example.com", h.deps.ResetRequest)
	if res.Failure != FailureNone || res.DeliveryErr == nil || !res.Issued {
		t.Fatalf("unexpected result %+v", res)
	}
}

// brokenRedeem fails every redeem the way a rolled-back transaction does:
// nothing is written.
type brokenRedeem struct {
	store.ResetTokens
}

func (brokenRedeem) RedeemResetToken(context.Context, string, string, time.Time) (store.ResetToken, int64, error) {
	return store.ResetToken{}, 0, errors.New("db down")
}

func TestResetConfirmStorageFailureLeavesTokenUsable(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "alice@example.com", "correct horse")
	RunRequestPasswordReset(context.Background(), "alice@example.com", h.deps.ResetRequest)
	token := h.mailer.lastToken(t)

	broken := h.deps.ResetConfirm
	broken.ResetTokens = brokenRedeem{h.store}
	if res := RunConfirmPasswordReset(context.Background(), token, "new password 1", broken); res.Failure != FailureStorage {
		t.Fatalf("expected storage failure, got %+v", res)
	}

	if res := RunConfirmPasswordReset(context.Background(), token, "new password 1", h.deps.ResetConfirm); res.Failure != FailureNone {
		t.Fatalf("retry after outage must succeed, got %+v", res)
	}
	if r := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "new password 1"}, h.deps.Login); r.Failure != FailureNone {
		t.Fatalf("login with new password failed: %v", r.Failure)
	}
}

// racedReplace reports a duplicate on the first replacement, as Postgres does
// for the later of two concurrent requests for one account.
type racedReplace struct {
	store.ResetTokens
	calls int
}

func (r *racedReplace) ReplaceResetToken(ctx context.Context, t store.ResetToken, now time.Time) (store.ResetToken, error) {
	r.calls++
	if r.calls == 1 {
		return store.ResetToken{}, store.ErrDuplicate
	}
	return r.ResetTokens.ReplaceResetToken(ctx, t, now)
}

func TestResetRequestRetriesConcurrentDuplicate(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "alice@example.com", "correct horse")

	raced := &racedReplace{ResetTokens: h.store}
	deps := h.deps.ResetRequest
	deps.ResetTokens = raced

	res := RunRequestPasswordReset(context.Background(), "alice@example.com", deps)
	if res.Failure != FailureNone || !res.Issued || raced.calls != 2 {
		t.Fatalf("expected issued after one retry, got %+v calls=%d", res, raced.calls)
	}
	token := h.mailer.lastToken(t)
	if r := RunConfirmPasswordReset(context.Background(), token, "new password 1", h.deps.ResetConfirm); r.Failure != FailureNone {
		t.Fatalf("mailed token must be usable, got %+v", r)
	}
}

func TestResetLinkAndBody(t *testing.T) {
	link := ResetLink("https://app.example/", "abc-_")
	if link != "https://app.example/reset-password?token=abc-_" {
		t.Fatalf("unexpected link %s", link)
	}
	if body := ResetEmailBody(link, time.Hour); !strings.Contains(body, "1 hour") || !strings.Contains(body, link) {
		t.Fatalf("unexpected body %s", body)
	}
}

type fakeProvider struct {
	name    string
	user    oauth.User
	exchErr error
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.example/authorize?state=" + state
}
func (p *fakeProvider) Exchange(_ context.Context, code string) (string, error) {
	if p.exchErr != nil {
		return "", p.exchErr
	}
	return "gho_" + code, nil
}
func (p *fakeProvider) FetchUser(context.Context, string) (oauth.User, error) { return p.user, nil }

func TestResolveIdentityOutcomes(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")
	ctx := context.Background()
	deps := h.deps.OAuth.Identity

	unverified := oauth.User{ID: "1", Email: "alice@example.com"}
	if res := RunResolveIdentity(ctx, "github", unverified, "t", deps); res.Failure != FailureAccountExists {
		t.Fatalf("expected merge refusal, got %v", res.Failure)
	}

	verified := oauth.User{ID: "1", Email: "alice@example.com", EmailVerified: true}
	res := RunResolveIdentity(ctx, "github", verified, "t", deps)
	if res.Failure != FailureNone || res.Outcome != LinkMerged || res.Account.ID != signup.Account.ID {
		t.Fatalf("expected merge, got %+v", res)
	}

	again := RunResolveIdentity(ctx, "github", oauth.User{ID: "1", Email: "changed@example.com"}, "t", deps)
	if again.Outcome != LinkExisting || again.Account.ID != signup.Account.ID {
		t.Fatalf("expected existing link, got %+v", again)
	}

	fresh := RunResolveIdentity(ctx, "github", oauth.User{ID: "2", Email: "2@github.noemail", Name: "octo"}, "t", deps)
	if fresh.Outcome != LinkCreated || fresh.Account.HasPassword() || !fresh.Account.Verified || fresh.Account.Provider != "github" {
		t.Fatalf("expected created oauth account, got %+v", fresh)
	}
}

func TestOAuthCallbackConsumesStateOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := &fakeProvider{name: "github", user: oauth.User{ID: "42", Email: "octo@example.com", EmailVerified: true, Name: "Octo"}}

	authURL, state, kind, err := RunAuthorizationURL(ctx, p, h.deps.OAuth)
	if kind != FailureNone || err != nil || !strings.HasSuffix(authURL, state) {
		t.Fatalf("authorization url: %v %v %s", kind, err, authURL)
	}

	res := RunOAuthCallback(ctx, p, "code", state, h.deps.OAuth)
	if res.Failure != FailureNone || res.Outcome != LinkCreated {
		t.Fatalf("callback failed: %+v", res)
	}
	if replay := RunOAuthCallback(ctx, p, "code", state, h.deps.OAuth); replay.Failure != FailureInvalidState {
		t.Fatalf("expected invalid state on replay, got %v", replay.Failure)
	}
}

func TestOAuthCallbackProviderMismatchAndUpstream(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	gh := &fakeProvider{name: "github", user: oauth.User{ID: "42", Email: "octo@example.com"}}
	other := &fakeProvider{name: "gitlab"}

	_, state, _, _ := RunAuthorizationURL(ctx, gh, h.deps.OAuth)
	if res := RunOAuthCallback(ctx, other, "code", state, h.deps.OAuth); res.Failure != FailureInvalidState {
		t.Fatalf("expected provider mismatch to fail state, got %v", res.Failure)
	}

	gh.exchErr = errors.New("bad_verification_code")
	_, state, _, _ = RunAuthorizationURL(ctx, gh, h.deps.OAuth)
	if res := RunOAuthCallback(ctx, gh, "code", state, h.deps.OAuth); res.Failure != FailureUpstream {
		t.Fatalf("expected upstream failure, got %v", res.Failure)
	}
}

func TestOAuthCallbackWithoutCodeIsUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	gh := &fakeProvider{name: "github", user: oauth.User{ID: "42", Email: "octo@example.com"}}

	_, state, _, _ := RunAuthorizationURL(ctx, gh, h.deps.OAuth)
	res := RunOAuthCallback(ctx, gh, "", state, h.deps.OAuth)
	if res.Failure != FailureUpstream {
		t.Fatalf("expected upstream failure for a denied consent, got %v", res.Failure)
	}
	if replay := RunOAuthCallback(ctx, gh, "code", state, h.deps.OAuth); replay.Failure != FailureInvalidState {
		t.Fatalf("state must be spent by the failed callback, got %v", replay.Failure)
	}
}

func TestValidateAndAccountStatus(t *testing.T) {
	h := newHarness(t)
	signup := h.signup(t, "alice@example.com", "correct horse")
	ctx := context.Background()

	if res := RunValidateAccess(ctx, signup.Tokens.AccessToken, h.deps.Validate); res.Failure != FailureNone || res.Account.ID != signup.Account.ID {
		t.Fatalf("validate failed: %+v", res)
	}
	if res := RunValidateAccess(ctx, signup.Tokens.RefreshToken, h.deps.Validate); res.Failure != FailureInvalidTokenType {
		t.Fatalf("expected invalid token type, got %v", res.Failure)
	}

	status := RunSetAccountActive(ctx, signup.Account.ID, false, h.deps.AccountStatus)
	if status.Failure != FailureNone || !status.Changed || status.Revoked != 1 {
		t.Fatalf("unexpected status result %+v", status)
	}
	if res := RunValidateAccess(ctx, signup.Tokens.AccessToken, h.deps.Validate); res.Failure != FailureAccountDisabled {
		t.Fatalf("expected disabled, got %v", res.Failure)
	}
	if res := RunSetAccountActive(ctx, "missing", true, h.deps.AccountStatus); res.Failure != FailureAccountNotFound {
		t.Fatalf("expected not found, got %v", res.Failure)
	}
}

func TestFailureKindString(t *testing.T) {
	if FailureReplayDetected.String() != "replay_detected" || FailureKind(999).String() != "unknown" {
		t.Fatal("unexpected failure names")
	}
}
