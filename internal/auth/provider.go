package auth

import (
	"context"

	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/joshua-takyi/eventify/internal/models"
)

var ErrLoginUnsupported = &models.AppError{
	Kind:    models.KindInvalid,
	Code:    "unsupported_login",
	Message: "this sign-in method is not available with the configured identity provider",
}

// Tokens is a session handed to the client as cookies or a JSON body.
type Tokens struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"-"`
}

// Credentials is what a provider asks the user store to remember.
// PasswordHash is empty when the provider keeps the secret itself.
type Credentials struct {
	Subject      string
	PasswordHash string
}

// IdentityProvider issues and verifies the tokens that identify a user.
// Every token subject maps to exactly one users.auth_subject.
type IdentityProvider interface {
	Name() string
	Register(ctx context.Context, user *models.User, password string) (*Credentials, error)
	SignIn(ctx context.Context, user *models.User, password string) (*Tokens, error)
	// Issue starts a session for a user already authenticated elsewhere.
	Issue(ctx context.Context, user *models.User) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	VerifyToken(ctx context.Context, token string) (*helpers.CustomClaims, error)
	SetPassword(ctx context.Context, user *models.User, password string) (*Credentials, error)
}
