package service

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-sync/internal/auth"
	"github.com/spec-kit/ticket-sync/internal/config"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

func TestAuthServiceLogin(t *testing.T) {
	hash, err := auth.HashPassword("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewAuthService(config.AuthConfig{
		JWTSecret:             "jwt",
		AccessTokenTTLMinutes: 10,
		OperatorUsername:      "ops",
		OperatorPasswordHash:  hash,
	})
	ctx := context.Background()

	token, err := svc.Login(ctx, "ops", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svc.TokenManager().ParseToken(token.Value); err != nil {
		t.Errorf("issued token does not parse: %v", err)
	}

	for _, creds := range [][2]string{{"ops", "wrong"}, {"other", "s3cret"}} {
		if _, err := svc.Login(ctx, creds[0], creds[1]); !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
			t.Errorf("Login(%q, %q) error = %v, want unauthorized", creds[0], creds[1], err)
		}
	}
}

func TestAuthServiceLoginDisabled(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{JWTSecret: "jwt", OperatorUsername: "ops"})
	if _, err := svc.Login(context.Background(), "ops", ""); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("Login error = %v, want forbidden", err)
	}
}
