package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/eventify/internal/auth"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memOTPStore struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *memOTPStore) Save(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = map[string]string{}
	}
	s.codes[email] = code
	return nil
}

func (s *memOTPStore) Consume(_ context.Context, email, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.codes[email]; ok && stored == code {
		delete(s.codes, email)
		return true, nil
	}
	return false, nil
}

func (s *memOTPStore) TTL() time.Duration { return 10 * time.Minute }

type capturingSender struct {
	codes map[string]string
}

func (s *capturingSender) SendOTP(_ context.Context, email, code string, _ time.Duration) error {
	if s.codes == nil {
		s.codes = map[string]string{}
	}
	s.codes[email] = code
	return nil
}

type stubGoogle struct {
	claims *auth.GoogleClaims
	err    error
}

func (g *stubGoogle) Verify(context.Context, string) (*auth.GoogleClaims, error) {
	return g.claims, g.err
}

type userFixture struct {
	store  *memStore
	otps   *memOTPStore
	sender *capturingSender
	google *stubGoogle
	svc    *UserService
}

func newUserFixture() *userFixture {
	f := &userFixture{
		store:  newMemStore(),
		otps:   &memOTPStore{},
		sender: &capturingSender{},
		google: &stubGoogle{},
	}
	provider := auth.NewLocalProvider("test-secret", 15*time.Minute, time.Hour)
	f.svc = NewUserService(f.store, provider, f.google, f.otps, f.sender, &memBlobStore{}, discardLogger())
	return f
}

func registerAma(t *testing.T, f *userFixture) *models.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "  Ama@Example.com ",
		Username: "ama",
		Name:     "Ama Owusu",
		Password: "Str0ng!pass",
	})
	require.NoError(t, err)
	return user
}

func TestUserService_Register(t *testing.T) {
	f := newUserFixture()
	user := registerAma(t, f)

	assert.Equal(t, "ama@example.com", user.Email)
	assert.Equal(t, models.RoleAttendee, user.Role)
	assert.Equal(t, user.ID.Hex(), user.AuthSubject)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "Str0ng!pass", user.PasswordHash)

	tests := []struct {
		name string
		in   RegisterInput
		err  error
	}{
		{"weak password", RegisterInput{Email: "kofi@example.com", Username: "kofi", Name: "Kofi", Password: "password1"}, models.ErrWeakPassword},
		{"bad email", RegisterInput{Email: "kofi", Username: "kofi", Name: "Kofi", Password: "Str0ng!pass"}, models.ErrInvalidInput},
		{"duplicate email", RegisterInput{Email: "AMA@example.com", Username: "other", Name: "Ama", Password: "Str0ng!pass"}, models.ErrUserExists},
		{"duplicate username", RegisterInput{Email: "new@example.com", Username: "ama", Name: "Ama", Password: "Str0ng!pass"}, models.ErrUserExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestUserService_LoginAndAuthenticate(t *testing.T) {
	f := newUserFixture()
	user := registerAma(t, f)
	ctx := context.Background()

	for _, identifier := range []string{"ama@example.com", "ama"} {
		session, err := f.svc.Login(ctx, identifier, "Str0ng!pass")
		require.NoError(t, err, identifier)
		assert.Equal(t, user.ID, session.User.ID)
		assert.NotEmpty(t, session.Tokens.AccessToken)

		authed, claims, err := f.svc.Authenticate(ctx, session.Tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, authed.ID)
		assert.Equal(t, user.AuthSubject, claims.Subject)
	}

	_, err := f.svc.Login(ctx, "ama", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "nobody@example.com", "Str0ng!pass")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, _, err = f.svc.Authenticate(ctx, "not-a-token")
	assert.Error(t, err)
}

func TestUserService_RefreshIssuesNewAccessToken(t *testing.T) {
	f := newUserFixture()
	registerAma(t, f)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, "ama", "Str0ng!pass")
	require.NoError(t, err)

	tokens, err := f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	require.NoError(t, err)
	_, _, err = f.svc.Authenticate(ctx, tokens.AccessToken)
	assert.NoError(t, err)

	_, err = f.svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = f.svc.Refresh(ctx, session.Tokens.AccessToken)
	assert.Error(t, err)
}

func TestUserService_ChangePassword(t *testing.T) {
	f := newUserFixture()
	registerAma(t, f)
	ctx := context.Background()
	user, err := f.store.GetUserByUsername(ctx, "ama")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, user, "Str0ng!pass", "weak"), models.ErrWeakPassword)
	assert.ErrorIs(t, f.svc.ChangePassword(ctx, user, "wrong", "N3w!password"), models.ErrInvalidCredentials)
	require.NoError(t, f.svc.ChangePassword(ctx, user, "Str0ng!pass", "N3w!password"))

	_, err = f.svc.Login(ctx, "ama", "Str0ng!pass")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "ama", "N3w!password")
	assert.NoError(t, err)
}

func TestUserService_PasswordResetIsSingleUse(t *testing.T) {
	f := newUserFixture()
	registerAma(t, f)
	ctx := context.Background()

	require.NoError(t, f.svc.SendOTP(ctx, "ama@example.com"))
	code := f.sender.codes["ama@example.com"]
	require.Len(t, code, otpLength)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ama@example.com", code, "weak"), models.ErrWeakPassword)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ama@example.com", "000000x", "N3w!password"), models.ErrInvalidOTP)

	require.NoError(t, f.svc.ResetPassword(ctx, "ama@example.com", code, "N3w!password"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ama@example.com", code, "An0ther!pass"), models.ErrInvalidOTP)

	_, err := f.svc.Login(ctx, "ama@example.com", "N3w!password")
	assert.NoError(t, err)
}

func TestUserService_SendOTPUnknownEmailIsSilent(t *testing.T) {
	f := newUserFixture()

	require.NoError(t, f.svc.SendOTP(context.Background(), "ghost@example.com"))
	assert.Empty(t, f.sender.codes)
	assert.ErrorIs(t, f.svc.SendOTP(context.Background(), "not-an-email"), models.ErrInvalidInput)

	unconfigured := NewUserService(f.store, auth.NewLocalProvider("s", time.Minute, time.Hour), nil, nil, nil, nil, discardLogger())
	assert.ErrorIs(t, unconfigured.SendOTP(context.Background(), "ama@example.com"), models.ErrUpstreamFailure)
}

func TestUserService_GoogleLogin(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()
	f.google.claims = &auth.GoogleClaims{
		Email:            "yaw.boateng@gmail.com",
		EmailVerified:    true,
		Name:             "Yaw Boateng",
		Picture:          "https://lh3.googleusercontent.com/a/yaw",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1099"},
	}

	first, err := f.svc.GoogleLogin(ctx, "id-token")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGoogle, first.User.Provider)
	assert.True(t, strings.HasPrefix(first.User.Username, "yawboateng"))
	require.NotNil(t, first.User.ProfileImage)
	assert.NotEmpty(t, first.Tokens.AccessToken)

	second, err := f.svc.GoogleLogin(ctx, "id-token")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	authed, _, err := f.svc.Authenticate(ctx, second.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, authed.ID)

	_, err = f.svc.GoogleLogin(ctx, "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	f.google.err = errors.New("bad audience")
	_, err = f.svc.GoogleLogin(ctx, "id-token")
	assert.Error(t, err)
}

func TestUserService_UpdateAvatarReplacesPrevious(t *testing.T) {
	f := newUserFixture()
	blobs := &memBlobStore{}
	f.svc.store = blobs
	user := registerAma(t, f)
	ctx := context.Background()

	first, err := f.svc.UpdateAvatar(ctx, user, strings.NewReader("one"))
	require.NoError(t, err)
	second, err := f.svc.UpdateAvatar(ctx, first, strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first.ProfileImage.FileName, second.ProfileImage.FileName)
	assert.Equal(t, []string{first.ProfileImage.FileName}, blobs.deleted)

	public, err := f.svc.GetPublicProfile(ctx, "ama")
	require.NoError(t, err)
	assert.Equal(t, second.ProfileImage.FileName, public.ProfileImage.FileName)
}
