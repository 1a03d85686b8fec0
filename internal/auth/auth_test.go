package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "a-very-long-secret-used-only-in-tests-123"

func newLocal() *LocalProvider {
	p := NewLocalProvider(testSecret, time.Hour, 24*time.Hour)
	p.cost = bcrypt.MinCost
	return p
}

func newUser() *models.User {
	u := &models.User{Email: "kofi@example.com", Username: "kofi", Name: "Kofi"}
	u.BeforeCreate()
	return u
}

func TestLocalProvider_RegisterAndSignIn(t *testing.T) {
	p := newLocal()
	user := newUser()

	creds, err := p.Register(context.Background(), user, "Str0ng!pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), creds.Subject)
	assert.NotEqual(t, "Str0ng!pass", creds.PasswordHash)

	user.AuthSubject = creds.Subject
	user.PasswordHash = creds.PasswordHash

	tokens, err := p.SignIn(context.Background(), user, "Str0ng!pass")
	require.NoError(t, err)
	assert.Equal(t, 3600, tokens.ExpiresIn)

	claims, err := p.VerifyToken(context.Background(), tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.Subject)
	assert.Equal(t, "kofi@example.com", claims.Email)
	assert.Equal(t, helpers.TokenTypeAccess, claims.TokenType)
}

func TestLocalProvider_SignInWrongPassword(t *testing.T) {
	p := newLocal()
	user := newUser()
	creds, err := p.Register(context.Background(), user, "Str0ng!pass")
	require.NoError(t, err)
	user.PasswordHash = creds.PasswordHash

	_, err = p.SignIn(context.Background(), user, "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	user.PasswordHash = ""
	_, err = p.SignIn(context.Background(), user, "Str0ng!pass")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestLocalProvider_TokenTypesAreNotInterchangeable(t *testing.T) {
	p := newLocal()
	user := newUser()
	user.AuthSubject = user.ID.Hex()

	tokens, err := p.Issue(context.Background(), user)
	require.NoError(t, err)

	_, err = p.VerifyToken(context.Background(), tokens.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = p.Refresh(context.Background(), tokens.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	refreshed, err := p.Refresh(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)
	claims, err := p.VerifyToken(context.Background(), refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.AuthSubject, claims.Subject)
}

func TestLocalProvider_RejectsExpiredAndForeignTokens(t *testing.T) {
	p := newLocal()
	user := newUser()
	user.AuthSubject = user.ID.Hex()

	p.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tokens, err := p.Issue(context.Background(), user)
	require.NoError(t, err)
	p.now = time.Now

	_, err = p.VerifyToken(context.Background(), tokens.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	other := NewLocalProvider("another-secret-that-is-long-enough-000", time.Hour, time.Hour)
	fresh, err := other.Issue(context.Background(), user)
	require.NoError(t, err)
	_, err = p.VerifyToken(context.Background(), fresh.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestLocalProvider_IssueRequiresSubject(t *testing.T) {
	_, err := newLocal().Issue(context.Background(), &models.User{ID: primitive.NewObjectID()})
	assert.Error(t, err)
}

type jwksFixture struct {
	key    *rsa.PrivateKey
	server *httptest.Server
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return &jwksFixture{key: key, server: srv}
}

func (f *jwksFixture) sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func (f *jwksFixture) verifier(t *testing.T) *JWKSVerifier {
	t.Helper()
	v, err := NewJWKSVerifier(context.Background(), f.server.URL, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return v
}

func googleClaims(aud, iss string, verified bool) *GoogleClaims {
	return &GoogleClaims{
		Email:         "esi@gmail.com",
		EmailVerified: verified,
		Name:          "Esi Mensah",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1092837465",
			Issuer:    iss,
			Audience:  jwt.ClaimStrings{aud},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestGoogleVerifier(t *testing.T) {
	f := newJWKSFixture(t)
	g := NewGoogleVerifier(f.verifier(t), "client-123")

	claims, err := g.Verify(context.Background(), f.sign(t, googleClaims("client-123", "https://accounts.google.com", true)))
	require.NoError(t, err)
	assert.Equal(t, "esi@gmail.com", claims.Email)
	assert.Equal(t, "1092837465", claims.Subject)

	tests := []struct {
		name   string
		claims *GoogleClaims
	}{
		{"wrong audience", googleClaims("someone-else", "accounts.google.com", true)},
		{"wrong issuer", googleClaims("client-123", "https://evil.example.com", true)},
		{"unverified email", googleClaims("client-123", "accounts.google.com", false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Verify(context.Background(), f.sign(t, tt.claims))
			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

type mockSupabaseAuth struct {
	mock.Mock
}

func (m *mockSupabaseAuth) Signup(req types.SignupRequest) (*types.SignupResponse, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*types.SignupResponse)
	return res, args.Error(1)
}

func (m *mockSupabaseAuth) SignInWithEmailPassword(email, password string) (*types.TokenResponse, error) {
	args := m.Called(email, password)
	res, _ := args.Get(0).(*types.TokenResponse)
	return res, args.Error(1)
}

func (m *mockSupabaseAuth) RefreshToken(refreshToken string) (*types.TokenResponse, error) {
	args := m.Called(refreshToken)
	res, _ := args.Get(0).(*types.TokenResponse)
	return res, args.Error(1)
}

func (m *mockSupabaseAuth) AdminUpdateUser(req types.AdminUpdateUserRequest) (*types.AdminUpdateUserResponse, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*types.AdminUpdateUserResponse)
	return res, args.Error(1)
}

func TestSupabaseProvider_Register(t *testing.T) {
	api := new(mockSupabaseAuth)
	p := &SupabaseProvider{auth: api, refreshTTL: time.Hour}
	user := newUser()
	id := uuid.New()

	res := &types.SignupResponse{}
	res.User.ID = id
	api.On("Signup", mock.MatchedBy(func(req types.SignupRequest) bool {
		return req.Email == user.Email && req.Data["username"] == "kofi"
	})).Return(res, nil).Once()

	creds, err := p.Register(context.Background(), user, "Str0ng!pass")
	require.NoError(t, err)
	assert.Equal(t, id.String(), creds.Subject)
	assert.Empty(t, creds.PasswordHash)

	api.On("Signup", mock.Anything).Return(nil, errors.New("User already registered")).Once()
	_, err = p.Register(context.Background(), user, "Str0ng!pass")
	assert.ErrorIs(t, err, models.ErrUserExists)
}

func TestSupabaseProvider_SignInAndRefresh(t *testing.T) {
	api := new(mockSupabaseAuth)
	p := &SupabaseProvider{auth: api, refreshTTL: 720 * time.Hour}
	user := newUser()

	session := &types.TokenResponse{}
	session.AccessToken = "access"
	session.RefreshToken = "refresh"
	session.ExpiresIn = 3600

	api.On("SignInWithEmailPassword", user.Email, "good").Return(session, nil)
	api.On("SignInWithEmailPassword", user.Email, "bad").Return(nil, errors.New("invalid_grant"))
	api.On("RefreshToken", "refresh").Return(session, nil)

	tokens, err := p.SignIn(context.Background(), user, "good")
	require.NoError(t, err)
	assert.Equal(t, "access", tokens.AccessToken)
	assert.Equal(t, 720*3600, tokens.RefreshExpiresIn)

	_, err = p.SignIn(context.Background(), user, "bad")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	tokens, err = p.Refresh(context.Background(), "refresh")
	require.NoError(t, err)
	assert.Equal(t, "refresh", tokens.RefreshToken)

	_, err = p.Issue(context.Background(), user)
	assert.ErrorIs(t, err, ErrLoginUnsupported)
}

func TestSupabaseProvider_SetPassword(t *testing.T) {
	api := new(mockSupabaseAuth)
	user := newUser()
	user.AuthSubject = uuid.NewString()

	withoutAdmin := &SupabaseProvider{auth: api}
	_, err := withoutAdmin.SetPassword(context.Background(), user, "N3w!password")
	assert.ErrorIs(t, err, models.ErrUpstreamFailure)

	api.On("AdminUpdateUser", mock.MatchedBy(func(req types.AdminUpdateUserRequest) bool {
		return req.UserID.String() == user.AuthSubject && req.Password == "N3w!password"
	})).Return(&types.AdminUpdateUserResponse{}, nil)

	p := &SupabaseProvider{auth: api, admin: api}
	creds, err := p.SetPassword(context.Background(), user, "N3w!password")
	require.NoError(t, err)
	assert.Equal(t, user.AuthSubject, creds.Subject)
	api.AssertExpectations(t)
}

func TestSupabaseProvider_VerifyToken(t *testing.T) {
	f := newJWKSFixture(t)
	p := &SupabaseProvider{verifier: f.verifier(t)}

	claims := &helpers.CustomClaims{
		Email: "kofi@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Audience:  jwt.ClaimStrings{supabaseAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	got, err := p.VerifyToken(context.Background(), f.sign(t, claims))
	require.NoError(t, err)
	assert.Equal(t, claims.Subject, got.Subject)

	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = p.VerifyToken(context.Background(), f.sign(t, claims))
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestSupabaseJWKSURL(t *testing.T) {
	assert.Equal(t, "https://abc.supabase.co/auth/v1/.well-known/jwks.json", SupabaseJWKSURL("https://abc.supabase.co/"))
}
