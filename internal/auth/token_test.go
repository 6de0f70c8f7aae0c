package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, err := tm.GenerateToken("operator", domain.SubjectTypeOperator)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := tm.ParseToken(token.Value)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != domain.SubjectTypeOperator || claims.RegisteredClaims.Subject != "operator" {
		t.Errorf("claims = %+v", claims)
	}
	if d := time.Until(token.ExpiresAt); d <= 4*time.Minute || d > 5*time.Minute {
		t.Errorf("expires in %v, want about 5m", d)
	}
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, err := tm.GenerateToken("operator", domain.SubjectTypeOperator)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewTokenManager("other", 5).ParseToken(token.Value); err == nil {
		t.Error("token signed with another secret accepted")
	}

	later := NewTokenManager("secret", 5)
	later.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := later.ParseToken(token.Value); err == nil {
		t.Error("expired token accepted")
	}

	if _, err := tm.ParseToken("not-a-token"); err == nil {
		t.Error("garbage accepted")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if err := ComparePassword(hash, "hunter2"); err != nil {
		t.Errorf("ComparePassword(correct) = %v", err)
	}
	if err := ComparePassword(hash, "hunter3"); err == nil {
		t.Error("ComparePassword accepted a wrong password")
	}
}
