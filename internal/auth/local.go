package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/joshua-takyi/eventify/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const localIssuer = "eventify"

// LocalProvider keeps bcrypt hashes in the user store and signs HS256 tokens.
type LocalProvider struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
	now        func() time.Time
}

func NewLocalProvider(secret string, accessTTL, refreshTTL time.Duration) *LocalProvider {
	return &LocalProvider{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		cost:       bcrypt.DefaultCost,
		now:        time.Now,
	}
}

func (p *LocalProvider) Name() string {
	return models.ProviderLocal
}

func (p *LocalProvider) Register(ctx context.Context, user *models.User, password string) (*Credentials, error) {
	return p.SetPassword(ctx, user, password)
}

func (p *LocalProvider) SetPassword(_ context.Context, user *models.User, password string) (*Credentials, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &Credentials{Subject: user.ID.Hex(), PasswordHash: string(hash)}, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, user *models.User, password string) (*Tokens, error) {
	if user.PasswordHash == "" {
		return nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return p.Issue(ctx, user)
}

func (p *LocalProvider) Issue(_ context.Context, user *models.User) (*Tokens, error) {
	return p.issue(user.AuthSubject, user.Email)
}

func (p *LocalProvider) Refresh(_ context.Context, refreshToken string) (*Tokens, error) {
	claims, err := p.parse(refreshToken, helpers.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return p.issue(claims.Subject, claims.Email)
}

func (p *LocalProvider) VerifyToken(_ context.Context, token string) (*helpers.CustomClaims, error) {
	return p.parse(token, helpers.TokenTypeAccess)
}

func (p *LocalProvider) issue(subject, email string) (*Tokens, error) {
	if subject == "" {
		return nil, errors.New("cannot issue a token without a subject")
	}

	access, err := p.sign(subject, email, helpers.TokenTypeAccess, p.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := p.sign(subject, email, helpers.TokenTypeRefresh, p.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &Tokens{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "bearer",
		ExpiresIn:        int(p.accessTTL.Seconds()),
		RefreshExpiresIn: int(p.refreshTTL.Seconds()),
	}, nil
}

func (p *LocalProvider) sign(subject, email, tokenType string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := helpers.CustomClaims{
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    localIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	claims.AppMetadata.Provider = models.ProviderLocal

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (p *LocalProvider) parse(tokenStr, tokenType string) (*helpers.CustomClaims, error) {
	claims := &helpers.CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(localIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: expected %s token", models.ErrUnauthorized, tokenType)
	}
	return claims, nil
}
