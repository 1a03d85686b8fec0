package models

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

const (
	ProviderLocal    = "local"
	ProviderGoogle   = "google"
	ProviderSupabase = "supabase"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AuthSubject  string             `bson:"auth_subject" json:"-"`
	Email        string             `bson:"email" json:"email" validate:"required,email"`
	Username     string             `bson:"username" json:"username" validate:"required,min=3,max=32,alphanum"`
	Name         string             `bson:"name" json:"name" validate:"required,max=100"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	Provider     string             `bson:"provider" json:"provider"`
	GoogleID     string             `bson:"google_id,omitempty" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	ProfileImage *Image             `bson:"profile_image,omitempty" json:"profile_image,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

func (u *User) BeforeCreate() {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Username = strings.TrimSpace(u.Username)
	if u.Role == "" {
		u.Role = RoleAttendee
	}
	if u.Provider == "" {
		u.Provider = ProviderLocal
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
}

// PublicProfile is the view of a user exposed to other users.
type PublicProfile struct {
	ID           primitive.ObjectID `json:"id"`
	Username     string             `json:"username"`
	Name         string             `json:"name"`
	Role         Role               `json:"role"`
	ProfileImage *Image             `json:"profile_image,omitempty"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:           u.ID,
		Username:     u.Username,
		Name:         u.Name,
		Role:         u.Role,
		ProfileImage: u.ProfileImage,
	}
}

// PromoteOnEventCreation is the role a user holds after creating an event.
func PromoteOnEventCreation(current Role) Role {
	if current == RoleAttendee || current == "" {
		return RoleOrganizer
	}
	return current
}

type UserRepo interface {
	// CreateUser returns ErrUserExists on a duplicate email, username or subject.
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	GetUserBySubject(ctx context.Context, subject string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// UpsertFederatedUser returns the account for user.Email, creating it on first login.
	UpsertFederatedUser(ctx context.Context, user *User) (*User, error)
	UpdatePasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error
	UpdateProfileImage(ctx context.Context, id primitive.ObjectID, image *Image) (*User, error)
}
