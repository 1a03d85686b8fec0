package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventify/internal/auth"
	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const otpLength = 6

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// OTPStore keeps password reset codes until they are used or expire.
type OTPStore interface {
	Save(ctx context.Context, email, code string) error
	Consume(ctx context.Context, email, code string) (bool, error)
	TTL() time.Duration
}

type OTPSender interface {
	SendOTP(ctx context.Context, email, code string, ttl time.Duration) error
}

type GoogleTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*auth.GoogleClaims, error)
}

type RegisterInput struct {
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Username string `json:"username" binding:"required" validate:"required,min=3,max=32,alphanum"`
	Name     string `json:"name" binding:"required" validate:"required,max=100"`
	Password string `json:"password" binding:"required" validate:"required,min=8"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
}

// Session is a signed-in user with the tokens for the client.
type Session struct {
	User   *models.User
	Tokens *auth.Tokens
}

type UserService struct {
	users    models.UserRepo
	provider auth.IdentityProvider
	google   GoogleTokenVerifier
	otps     OTPStore
	sender   OTPSender
	store    storage.BlobStore
	logger   *slog.Logger
}

// NewUserService wires the account flows. google, otps and store are optional;
// the matching operations fail with an upstream error when they are nil.
func NewUserService(
	users models.UserRepo,
	provider auth.IdentityProvider,
	google GoogleTokenVerifier,
	otps OTPStore,
	sender OTPSender,
	store storage.BlobStore,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		provider: provider,
		google:   google,
		otps:     otps,
		sender:   sender,
		store:    store,
		logger:   logger,
	}
}

func (us *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(helpers.StringTrim(in.Email))
	in.Username = helpers.StringTrim(in.Username)
	in.Name = helpers.StringTrim(in.Name)

	if err := models.Validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	if !helpers.IsPasswordStrong(in.Password) {
		return nil, models.ErrWeakPassword
	}

	// checked before the provider call so a hosted provider never holds an orphan account
	if err := us.ensureAvailable(ctx, in.Email, in.Username); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:    in.Email,
		Username: in.Username,
		Name:     in.Name,
		Phone:    in.Phone,
		Provider: us.provider.Name(),
	}
	user.BeforeCreate()

	creds, err := us.provider.Register(ctx, user, in.Password)
	if err != nil {
		return nil, err
	}
	user.AuthSubject = creds.Subject
	user.PasswordHash = creds.PasswordHash

	if err := us.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	us.logger.Info("User registered", "user_id", user.ID.Hex(), "provider", user.Provider)
	return user, nil
}

func (us *UserService) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := us.users.GetUserByEmail(ctx, email); err == nil {
		return models.ErrUserExists
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return err
	}
	if _, err := us.users.GetUserByUsername(ctx, username); err == nil {
		return models.ErrUserExists
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return err
	}
	return nil
}

// Login accepts an email address or a username as identifier.
func (us *UserService) Login(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = helpers.StringTrim(identifier)
	if identifier == "" || password == "" {
		return nil, models.Invalid("identifier and password are required")
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = us.users.GetUserByEmail(ctx, identifier)
	} else {
		user, err = us.users.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	tokens, err := us.provider.SignIn(ctx, user, password)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: tokens}, nil
}

func (us *UserService) Refresh(ctx context.Context, refreshToken string) (*auth.Tokens, error) {
	if refreshToken == "" {
		return nil, models.ErrUnauthorized
	}
	return us.provider.Refresh(ctx, refreshToken)
}

// GoogleLogin signs in with a Google ID token, creating the account on first use.
func (us *UserService) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	if us.google == nil || us.provider.Name() != models.ProviderLocal {
		return nil, auth.ErrLoginUnsupported
	}
	if idToken == "" {
		return nil, models.Invalid("id_token is required")
	}

	claims, err := us.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	candidate := &models.User{
		ID:       primitive.NewObjectID(),
		Email:    claims.Email,
		Username: usernameFromEmail(claims.Email),
		Name:     claims.Name,
		Provider: models.ProviderGoogle,
		GoogleID: claims.Subject,
	}
	if candidate.Name == "" {
		candidate.Name = candidate.Username
	}
	candidate.AuthSubject = candidate.ID.Hex()
	if claims.Picture != "" {
		candidate.ProfileImage = &models.Image{ImageURL: claims.Picture}
	}

	user, err := us.users.UpsertFederatedUser(ctx, candidate)
	if err != nil {
		return nil, err
	}

	tokens, err := us.provider.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: tokens}, nil
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	base := nonAlphanumeric.ReplaceAllString(local, "")
	if len(base) > 20 {
		base = base[:20]
	}
	return base + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// Authenticate resolves an access token to the stored user.
func (us *UserService) Authenticate(ctx context.Context, token string) (*models.User, *helpers.CustomClaims, error) {
	claims, err := us.provider.VerifyToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	user, err := us.users.GetUserBySubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, nil, fmt.Errorf("%w: unknown subject", models.ErrUnauthorized)
		}
		return nil, nil, err
	}
	return user, claims, nil
}

func (us *UserService) GetProfile(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return us.users.GetUserByID(ctx, id)
}

func (us *UserService) GetPublicProfile(ctx context.Context, username string) (models.PublicProfile, error) {
	user, err := us.users.GetUserByUsername(ctx, username)
	if err != nil {
		return models.PublicProfile{}, err
	}
	return user.Public(), nil
}

func (us *UserService) UpdateAvatar(ctx context.Context, user *models.User, image io.Reader) (*models.User, error) {
	if us.store == nil {
		return nil, models.Upstream("upload avatar", errors.New("image storage is not configured"))
	}

	uploaded, err := us.store.Store(ctx, helpers.AvatarFolder, image)
	if err != nil {
		return nil, err
	}

	updated, err := us.users.UpdateProfileImage(ctx, user.ID, uploaded)
	if err != nil {
		if derr := us.store.Delete(context.WithoutCancel(ctx), uploaded); derr != nil {
			us.logger.Warn("Failed to delete orphaned avatar", "file_name", uploaded.FileName, "error", derr)
		}
		return nil, err
	}

	if old := user.ProfileImage; old != nil && old.FileName != "" {
		if err := us.store.Delete(context.WithoutCancel(ctx), old); err != nil {
			us.logger.Warn("Failed to delete previous avatar", "file_name", old.FileName, "error", err)
		}
	}
	return updated, nil
}

// ChangePassword requires the current password.
func (us *UserService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
	if !helpers.IsPasswordStrong(newPassword) {
		return models.ErrWeakPassword
	}
	if _, err := us.provider.SignIn(ctx, user, oldPassword); err != nil {
		return err
	}
	return us.setPassword(ctx, user, newPassword)
}

// SendOTP emails a reset code. Unknown addresses get the same silent success
// so the endpoint does not reveal which accounts exist.
func (us *UserService) SendOTP(ctx context.Context, email string) error {
	email = strings.ToLower(helpers.StringTrim(email))
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return models.Invalid("a valid email is required")
	}
	if us.otps == nil || us.sender == nil {
		return models.Upstream("send otp", errors.New("password reset is not configured"))
	}

	user, err := us.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			us.logger.Debug("OTP requested for unknown email")
			return nil
		}
		return err
	}

	code, err := helpers.GenerateOTP(otpLength)
	if err != nil {
		return fmt.Errorf("failed to generate otp: %w", err)
	}
	if err := us.otps.Save(ctx, user.Email, code); err != nil {
		return models.Upstream("store otp", err)
	}
	return us.sender.SendOTP(ctx, user.Email, code, us.otps.TTL())
}

// ResetPassword consumes the code and sets the new password. A code works once.
func (us *UserService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = strings.ToLower(helpers.StringTrim(email))
	if email == "" || code == "" {
		return models.Invalid("email and otp are required")
	}
	if !helpers.IsPasswordStrong(newPassword) {
		return models.ErrWeakPassword
	}
	if us.otps == nil {
		return models.Upstream("reset password", errors.New("password reset is not configured"))
	}

	ok, err := us.otps.Consume(ctx, email, code)
	if err != nil {
		return models.Upstream("verify otp", err)
	}
	if !ok {
		return models.ErrInvalidOTP
	}

	user, err := us.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return models.ErrInvalidOTP
		}
		return err
	}
	return us.setPassword(ctx, user, newPassword)
}

func (us *UserService) setPassword(ctx context.Context, user *models.User, password string) error {
	creds, err := us.provider.SetPassword(ctx, user, password)
	if err != nil {
		return err
	}
	if creds.PasswordHash == "" {
		return nil
	}
	if err := us.users.UpdatePasswordHash(ctx, user.ID, creds.PasswordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	us.logger.Info("Password updated", "user_id", user.ID.Hex())
	return nil
}
