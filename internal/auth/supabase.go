package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

const supabaseAudience = "authenticated"

type supabaseAuth interface {
	Signup(req types.SignupRequest) (*types.SignupResponse, error)
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
	RefreshToken(refreshToken string) (*types.TokenResponse, error)
}

type supabaseAdmin interface {
	AdminUpdateUser(req types.AdminUpdateUserRequest) (*types.AdminUpdateUserResponse, error)
}

type tokenParser interface {
	Parse(tokenStr string, claims jwt.Claims, opts ...jwt.ParserOption) (*jwt.Token, error)
}

// SupabaseProvider delegates credentials to Supabase Auth and verifies its
// access tokens against the project's JWKS.
type SupabaseProvider struct {
	auth       supabaseAuth
	admin      supabaseAdmin
	verifier   tokenParser
	refreshTTL time.Duration
}

// NewSupabaseProvider wires the anon client for user flows and, when a service
// role key is configured, an admin client for password resets.
func NewSupabaseProvider(client *supabase.Client, serviceRoleKey string, verifier *JWKSVerifier, refreshTTL time.Duration) *SupabaseProvider {
	p := &SupabaseProvider{
		auth:       client.Auth,
		verifier:   verifier,
		refreshTTL: refreshTTL,
	}
	if serviceRoleKey != "" {
		p.admin = client.Auth.WithToken(serviceRoleKey)
	}
	return p
}

// SupabaseJWKSURL is the key set endpoint of a Supabase project.
func SupabaseJWKSURL(projectURL string) string {
	return strings.TrimRight(projectURL, "/") + "/auth/v1/.well-known/jwks.json"
}

func (p *SupabaseProvider) Name() string {
	return models.ProviderSupabase
}

func (p *SupabaseProvider) Register(_ context.Context, user *models.User, password string) (*Credentials, error) {
	res, err := p.auth.Signup(types.SignupRequest{
		Email:    user.Email,
		Password: password,
		Data: map[string]interface{}{
			"username": user.Username,
			"name":     user.Name,
		},
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already registered") {
			return nil, models.ErrUserExists
		}
		return nil, models.Upstream("supabase signup", err)
	}
	if res.User.ID == uuid.Nil {
		return nil, models.Upstream("supabase signup", errors.New("response carried no user id"))
	}
	return &Credentials{Subject: res.User.ID.String()}, nil
}

func (p *SupabaseProvider) SignIn(_ context.Context, user *models.User, password string) (*Tokens, error) {
	res, err := p.auth.SignInWithEmailPassword(user.Email, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCredentials, err)
	}
	return p.tokens(res), nil
}

func (p *SupabaseProvider) Issue(context.Context, *models.User) (*Tokens, error) {
	return nil, ErrLoginUnsupported
}

func (p *SupabaseProvider) Refresh(_ context.Context, refreshToken string) (*Tokens, error) {
	res, err := p.auth.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	return p.tokens(res), nil
}

func (p *SupabaseProvider) VerifyToken(_ context.Context, tokenStr string) (*helpers.CustomClaims, error) {
	claims := &helpers.CustomClaims{}
	token, err := p.verifier.Parse(tokenStr, claims,
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithAudience(supabaseAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	return claims, nil
}

func (p *SupabaseProvider) SetPassword(_ context.Context, user *models.User, password string) (*Credentials, error) {
	if p.admin == nil {
		return nil, models.Upstream("supabase password update", errors.New("service role key is not configured"))
	}
	id, err := uuid.Parse(user.AuthSubject)
	if err != nil {
		return nil, fmt.Errorf("invalid supabase subject %q: %w", user.AuthSubject, err)
	}
	if _, err := p.admin.AdminUpdateUser(types.AdminUpdateUserRequest{UserID: id, Password: password}); err != nil {
		return nil, models.Upstream("supabase password update", err)
	}
	return &Credentials{Subject: user.AuthSubject}, nil
}

func (p *SupabaseProvider) tokens(res *types.TokenResponse) *Tokens {
	return &Tokens{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		TokenType:        res.TokenType,
		ExpiresIn:        res.ExpiresIn,
		RefreshExpiresIn: int(p.refreshTTL.Seconds()),
	}
}
