package internal

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestHashTokenIsStableHex(t *testing.T) {
	got := HashToken("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("HashToken(abc) = %s, want %s", got, want)
	}
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("expected deterministic digest")
	}
}

func TestNewResetTokenIsRandomBase64URL(t *testing.T) {
	a, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	b, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct tokens")
	}
	raw, err := base64.RawURLEncoding.DecodeString(a)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != resetSecretSize {
		t.Fatalf("expected %d bytes, got %d", resetSecretSize, len(raw))
	}
}

func TestRandomDelayBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := RandomDelay(5*time.Millisecond, 10*time.Millisecond)
		if d < 5*time.Millisecond || d >= 10*time.Millisecond {
			t.Fatalf("delay %v out of range", d)
		}
	}
	if d := RandomDelay(time.Second, time.Second); d != time.Second {
		t.Fatalf("expected degenerate range to return min, got %v", d)
	}
}
