package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/eventify/internal/models"
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

type GoogleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier validates Google Sign-In ID tokens for one OAuth client.
type GoogleVerifier struct {
	verifier tokenParser
	clientID string
}

func NewGoogleVerifier(verifier *JWKSVerifier, clientID string) *GoogleVerifier {
	return &GoogleVerifier{verifier: verifier, clientID: clientID}
}

func (g *GoogleVerifier) Verify(_ context.Context, idToken string) (*GoogleClaims, error) {
	claims := &GoogleClaims{}
	token, err := g.verifier.Parse(idToken, claims,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(g.clientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if !googleIssuers[claims.Issuer] {
		return nil, fmt.Errorf("%w: unexpected issuer %q", models.ErrUnauthorized, claims.Issuer)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, fmt.Errorf("%w: google account email is not verified", models.ErrUnauthorized)
	}
	return claims, nil
}
