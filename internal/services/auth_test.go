package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/proofstake-backend/internal/platform/ctxutil"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	svc := NewAuthService(logger.Nop(), "secret", time.Minute, "proofstake")
	user := uuid.New()
	tok, err := svc.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	ctx, err := svc.SetContextFromToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	got, ok := ctxutil.CurrentUserID(ctx)
	if !ok || got != user {
		t.Fatalf("current user: want=%s got=%s ok=%v", user, got, ok)
	}
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(logger.Nop(), "secret", time.Minute, "")
	other := NewAuthService(logger.Nop(), "other-secret", time.Minute, "")
	foreign, _ := other.IssueAccessToken(uuid.New())

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}).SignedString([]byte("secret"))

	notUUID, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "someone",
	}}).SignedString([]byte("secret"))

	for name, tok := range map[string]string{"empty": "", "garbage": "abc", "foreign": foreign, "expired": expired, "subject": notUUID} {
		if _, err := svc.SetContextFromToken(context.Background(), tok); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
