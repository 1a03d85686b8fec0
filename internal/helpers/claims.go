package helpers

import (
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// CustomClaims covers both locally issued tokens and Supabase access tokens.
type CustomClaims struct {
	Role        string `json:"role,omitempty"`
	Email       string `json:"email,omitempty"`
	TokenType   string `json:"typ,omitempty"`
	AppMetadata struct {
		Provider  string   `json:"provider,omitempty"`
		Providers []string `json:"providers,omitempty"`
	} `json:"app_metadata,omitempty"`
	jwt.RegisteredClaims
}

// EnhancedClaims is the authenticated principal attached to a request.
type EnhancedClaims struct {
	*CustomClaims
	UserID   string `json:"id"`
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

func (ec *EnhancedClaims) IsAdmin() bool {
	return ec.Role == "admin"
}

func (ec *EnhancedClaims) IsOrganizer() bool {
	return ec.Role == "organizer"
}

func (ec *EnhancedClaims) HasRole(role string) bool {
	return ec.Role == role
}

func (ec *EnhancedClaims) IsOwner(userID string) bool {
	return ec.UserID == userID
}

func (ec *EnhancedClaims) GetSafeRole() string {
	if ec.Role == "" {
		return "attendee"
	}
	return ec.Role
}

func (ec *EnhancedClaims) ObjectID() (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(ec.UserID)
}
