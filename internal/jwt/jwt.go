package jwt

import (
	"context"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/zap"

	"github.com/smallbiznis/orgauth/internal/domain"
)

// Token classes. A refresh token presented where an access token is expected
// fails verification, so the two cannot be swapped.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Claims is the payload recovered from a verified token.
type Claims struct {
	UserID   string
	TokenUse string
}

type customClaims struct {
	TokenUse string `json:"token_use"`
}

// Generator signs and verifies access/refresh token pairs.
type Generator struct {
	keys       *KeyManager
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
}

// NewGenerator constructs a token generator.
func NewGenerator(keys *KeyManager, issuer string, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		keys:       keys,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// Issue produces a signed access/refresh pair carrying the user's identity.
func (g *Generator) Issue(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	access, err := g.sign(ctx, user.ID, UseAccess, g.accessTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := g.sign(ctx, user.ID, UseRefresh, g.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, expiry, issuer, and token class. Every failure
// surfaces as domain.ErrInvalidToken; the concrete cause is log-only so the
// API does not become an oracle for expiry vs. tampering.
func (g *Generator) Verify(ctx context.Context, token, expectedUse string) (Claims, error) {
	key, err := g.keys.EnsureSigningKey(ctx)
	if err != nil {
		return Claims{}, fmt.Errorf("load signing key: %w", err)
	}

	allowed := []gojose.SignatureAlgorithm{gojose.SignatureAlgorithm(key.Algorithm)}
	parsed, err := gojwt.ParseSigned(token, allowed)
	if err != nil {
		g.logger.Debug("token parse failed", zap.Error(err))
		return Claims{}, domain.ErrInvalidToken
	}

	var std gojwt.Claims
	var custom customClaims
	if err := parsed.Claims(key.Secret, &std, &custom); err != nil {
		g.logger.Debug("token signature invalid", zap.Error(err))
		return Claims{}, domain.ErrInvalidToken
	}

	if err := std.Validate(gojwt.Expected{Issuer: g.issuer, Time: time.Now()}); err != nil {
		g.logger.Debug("token claims rejected", zap.Error(err))
		return Claims{}, domain.ErrInvalidToken
	}

	if custom.TokenUse != expectedUse {
		g.logger.Debug("token class mismatch",
			zap.String("expected", expectedUse),
			zap.String("got", custom.TokenUse),
		)
		return Claims{}, domain.ErrInvalidToken
	}

	return Claims{UserID: std.Subject, TokenUse: custom.TokenUse}, nil
}

func (g *Generator) sign(ctx context.Context, userID, use string, ttl time.Duration) (string, error) {
	key, err := g.keys.EnsureSigningKey(ctx)
	if err != nil {
		return "", fmt.Errorf("ensure signing key: %w", err)
	}

	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.SignatureAlgorithm(key.Algorithm), Key: key.Secret},
		(&gojose.SignerOptions{}).WithType("JWT").WithHeader("kid", key.KID),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:   userID,
		Issuer:    g.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(ttl)),
	}
	custom := customClaims{TokenUse: use}

	serialized, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return serialized, nil
}
