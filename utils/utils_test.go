package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, claims, err := issuer.Generate(7, "ana")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if claims.ID == "" {
		t.Fatal("token has no ID")
	}

	got, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.UserID != 7 || got.Username != "ana" || got.ID != claims.ID {
		t.Fatalf("unexpected claims %+v", got)
	}
}

func TestTokenIssuerRejectsForeignAndExpiredTokens(t *testing.T) {
	token, _, _ := NewTokenIssuer("other", time.Hour).Generate(1, "ana")
	if _, err := NewTokenIssuer("secret", time.Hour).Parse(token); err == nil {
		t.Fatal("accepted token signed with another secret")
	}

	expired, _, _ := NewTokenIssuer("secret", -time.Minute).Generate(1, "ana")
	if _, err := NewTokenIssuer("secret", time.Hour).Parse(expired); err == nil {
		t.Fatal("accepted expired token")
	}
}

func TestTokenBlacklistInMemory(t *testing.T) {
	ctx := context.Background()
	b := NewTokenBlacklist(nil)

	if b.IsRevoked(ctx, "a") {
		t.Fatal("unknown token reported revoked")
	}
	if err := b.Revoke(ctx, "a", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !b.IsRevoked(ctx, "a") {
		t.Fatal("revoked token not reported")
	}

	// already expired tokens need no entry
	_ = b.Revoke(ctx, "b", time.Now().Add(-time.Second))
	if b.IsRevoked(ctx, "b") {
		t.Fatal("expired token should not be tracked")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "hunter22") || CheckPassword(hash, "hunter23") {
		t.Fatal("CheckPassword mismatch")
	}
	if _, err := HashPassword(strings.Repeat("x", 73)); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	if got, err := SanitizeTitle(" <b>Q&A</b> "); err != nil || got != "Q&A" {
		t.Errorf("SanitizeTitle = %q, %v", got, err)
	}
	for _, title := range []string{
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"1 < 2",
	} {
		if got, err := SanitizeTitle(title); !errors.Is(err, ErrTitleMarkup) || got != "" {
			t.Errorf("SanitizeTitle(%q) = %q, %v; want ErrTitleMarkup", title, got, err)
		}
	}
	if got := Sanitize(`<p onclick="x()">hi</p><script>alert(1)</script>`); got != "<p>hi</p>" {
		t.Errorf("Sanitize = %q", got)
	}
}
