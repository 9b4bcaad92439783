package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/proofstake-backend/internal/platform/ctxutil"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

// AuthService verifies bearer tokens issued by the identity provider. Account management lives there.
type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueAccessToken(userID uuid.UUID) (string, error)
}

type JWTClaims struct {
	jwt.RegisteredClaims
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey []byte
	accessTTL    time.Duration
	issuer       string
}

func NewAuthService(baseLog *logger.Logger, jwtSecretKey string, accessTTL time.Duration, issuer string) AuthService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		jwtSecretKey: []byte(jwtSecretKey),
		accessTTL:    accessTTL,
		issuer:       strings.TrimSpace(issuer),
	}
}

// IssueAccessToken mints an HS256 token for userID; used by local tooling and tests.
func (as *authService) IssueAccessToken(userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("missing user id")
	}
	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    as.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.jwtSecretKey)
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, fmt.Errorf("missing token")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if as.issuer != "" {
		opts = append(opts, jwt.WithIssuer(as.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, opts...)
	if err != nil {
		return ctx, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, fmt.Errorf("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("invalid user id in token: %w", err)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{TokenString: tokenString, UserID: userID}), nil
}
