package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinflip-server/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func withConfig(t *testing.T, secret string, ttl int) {
	t.Helper()
	prev := config.GetCurrent()
	cfg := &config.Config{}
	cfg.Auth.JWT.Secret = secret
	cfg.Auth.JWT.AccessTokenTTL = ttl
	cfg.Auth.JWT.Issuer = "coinflip-test"
	config.SetCurrent(cfg)
	t.Cleanup(func() { config.SetCurrent(prev) })
}

func TestAccessTokenRoundTrip(t *testing.T) {
	withConfig(t, "s3cret", 60)
	tok, exp, err := GenerateAccessToken("alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if exp.IsZero() {
		t.Fatalf("missing expiry")
	}
	claims, err := VerifyJWTToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.AccountID != "alice" || claims.Subject != "alice" || claims.Issuer != "coinflip-test" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	withConfig(t, "s3cret", 60)
	tok, _, _ := GenerateAccessToken("alice")

	withConfig(t, "other", 60)
	if _, err := VerifyJWTToken(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{AccountID: "alice"})
	s, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := VerifyJWTToken(context.Background(), s); err == nil {
		t.Fatalf("none alg accepted")
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"", ErrMissingToken},
		{"Token abc", ErrInvalidTokenFormat},
		{"Bearer", ErrInvalidTokenFormat},
		{"Bearer abc", nil},
	}
	for _, tc := range cases {
		if _, err := BearerToken(tc.in); !errors.Is(err, tc.want) {
			t.Errorf("BearerToken(%q) = %v, want %v", tc.in, err, tc.want)
		}
	}
}

func TestRevokeToken(t *testing.T) {
	withConfig(t, "s3cret", 60)
	ctx := context.Background()
	tok, exp, err := GenerateAccessToken("bob")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	other, _, _ := GenerateAccessToken("carol")

	// 已过期的撤销请求不写黑名单
	if err := RevokeToken(ctx, other, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke expired: %v", err)
	}
	if err := RevokeToken(ctx, tok, exp); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := VerifyJWTToken(ctx, tok); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("revoked token accepted: %v", err)
	}
	if _, err := VerifyJWTToken(ctx, other); err != nil {
		t.Fatalf("unrelated token rejected: %v", err)
	}
}
