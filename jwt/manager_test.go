package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	cfg := Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
	}
	if clock != nil {
		cfg.Now = clock.Now
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestAccessRoundTrip(t *testing.T) {
	m := newHSManager(t, nil)

	for _, id := range []string{"acc-1", "5f0e5c1e-9a57-4c59-9c54-8f0e9b7e3f11", "x"} {
		token, err := m.IssueAccess(id)
		if err != nil {
			t.Fatalf("IssueAccess(%q): %v", id, err)
		}
		claims, err := m.Decode(token)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if claims.AccountID() != id {
			t.Fatalf("expected sub %q, got %q", id, claims.Subject)
		}
		if claims.Type != TypeAccess {
			t.Fatalf("expected access type, got %q", claims.Type)
		}
		if claims.ID == "" {
			t.Fatal("expected jti to be set")
		}
		if claims.FamilyID != "" {
			t.Fatal("access token must not carry a family id")
		}
	}
}

func TestRefreshMintsAndKeepsFamily(t *testing.T) {
	m := newHSManager(t, nil)

	first, family, exp, err := m.IssueRefresh("acc-1", "")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if family == "" {
		t.Fatal("expected a new family id")
	}
	if time.Until(exp) < 6*24*time.Hour {
		t.Fatalf("unexpected refresh expiry %v", exp)
	}

	second, sameFamily, _, err := m.IssueRefresh("acc-1", family)
	if err != nil {
		t.Fatalf("IssueRefresh(family): %v", err)
	}
	if sameFamily != family {
		t.Fatalf("expected family %q to be kept, got %q", family, sameFamily)
	}
	if first == second {
		t.Fatal("expected distinct tokens for successive rotations")
	}

	claims, err := m.Decode(second)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Type != TypeRefresh || claims.FamilyID != family {
		t.Fatalf("unexpected refresh claims: %+v", claims)
	}

	_, other, _, err := m.IssueRefresh("acc-1", "")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if other == family {
		t.Fatal("expected a fresh family for a new login")
	}
}

func TestDecodeExpiryIsStrict(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m := newHSManager(t, clock)

	token, err := m.IssueAccess("acc-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	clock.now = clock.now.Add(15*time.Minute - time.Second)
	if _, err := m.Decode(token); err != nil {
		t.Fatalf("expected token to be valid one second before exp: %v", err)
	}

	clock.now = clock.now.Add(time.Second)
	if _, err := m.Decode(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid at exp, got %v", err)
	}
}

func TestDecodeCollapsesFailures(t *testing.T) {
	m := newHSManager(t, nil)
	other, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("ffffffffffffffffffffffffffffffff"),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	foreign, _ := other.IssueAccess("acc-1")

	expired := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{
		Type: TypeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "acc-1",
			ID:        "jti",
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredSigned, _ := expired.SignedString(testSecret)

	noExp := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{
		Type: TypeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:  "acc-1",
			ID:       "jti",
			IssuedAt: gjwt.NewNumericDate(time.Now()),
		},
	})
	noExpSigned, _ := noExp.SignedString(testSecret)

	refreshNoFamily := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{
		Type: TypeRefresh,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "acc-1",
			ID:        "jti",
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	refreshNoFamilySigned, _ := refreshNoFamily.SignedString(testSecret)

	unknownType := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{
		Type: "id",
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "acc-1",
			ID:        "jti",
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unknownTypeSigned, _ := unknownType.SignedString(testSecret)

	for name, token := range map[string]string{
		"empty":             "",
		"garbage":           "not.a.jwt",
		"none alg":          "eyJhbGciOiJub25lIn0.eyJzdWIiOiJ0ZXN0In0.",
		"foreign signature": foreign,
		"expired":           expiredSigned,
		"missing exp":       noExpSigned,
		"refresh no family": refreshNoFamilySigned,
		"unknown type":      unknownTypeSigned,
	} {
		claims, err := m.Decode(token)
		if err != ErrTokenInvalid {
			t.Fatalf("%s: expected ErrTokenInvalid, got %v", name, err)
		}
		if claims != nil {
			t.Fatalf("%s: expected nil claims", name)
		}
	}
}

func TestDecodeRejectsWrongAlgorithm(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{
		Type: TypeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "acc-1",
			ID:        "jti",
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	token, err := tok.SignedString([]byte(pub))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Decode(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}

	good, err := m.IssueAccess("acc-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := m.Decode(good); err != nil {
		t.Fatalf("expected ed25519 token to decode: %v", err)
	}
}

func TestDecodeIssuerAndAudience(t *testing.T) {
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "forgeauth",
		Audience:      "api",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.IssueAccess("acc-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := m.Decode(token); err != nil {
		t.Fatalf("expected valid token: %v", err)
	}

	wrongIssuer := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{
		Type: TypeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "acc-1",
			ID:        "jti",
			Issuer:    "other",
			Audience:  gjwt.ClaimStrings{"api"},
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, _ := wrongIssuer.SignedString(testSecret)
	if _, err := m.Decode(signed); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
}

func TestDecodeUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1, "k2": pub2},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{
		Type: TypeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "acc-1",
			ID:        "jti",
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k3"
	unknown, _ := tok.SignedString(priv1)
	if _, err := m.Decode(unknown); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	tok = gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	mismatched, _ := tok.SignedString(priv1)
	if _, err := m.Decode(mismatched); err == nil {
		t.Fatal("expected kid/key mismatch failure")
	}

	issued, _, _, err := m.IssueRefresh("acc-1", "")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := m.Decode(issued); err != nil {
		t.Fatalf("expected issued token to decode: %v", err)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := map[string]Config{
		"zero ttl":      {SigningMethod: MethodHS256, PrivateKey: testSecret},
		"short secret":  {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		"refresh < acc": {AccessTTL: time.Hour, RefreshTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: testSecret},
		"bad method":    {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: "rs256", PrivateKey: testSecret},
		"big leeway":    {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: testSecret, Leeway: time.Hour},
	}
	for name, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("%s: expected config to be rejected", name)
		}
	}
}
