package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zabira-api/internal/application/account"
	"github.com/zabira-api/internal/application/otp"
	"github.com/zabira-api/internal/domain"
	jwtinfra "github.com/zabira-api/internal/infrastructure/jwt"
	"github.com/zabira-api/internal/transport/http/middleware"
)

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) Signup(ctx context.Context, req domain.SignupRequest) (*account.SignupResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*account.SignupResult)
	return res, args.Error(1)
}

func (m *mockAccounts) Login(ctx context.Context, req domain.LoginRequest) (*account.LoginResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*account.LoginResult)
	return res, args.Error(1)
}

func (m *mockAccounts) SavePersonalInfo(ctx context.Context, req domain.PersonalInfoRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockAccounts) GetPersonalInfo(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

type mockOTP struct{ mock.Mock }

func (m *mockOTP) IssueEmailOTP(ctx context.Context, email string) (*domain.Challenge, error) {
	args := m.Called(ctx, email)
	ch, _ := args.Get(0).(*domain.Challenge)
	return ch, args.Error(1)
}

func (m *mockOTP) IssuePhoneOTP(ctx context.Context, email, phone string, method domain.Method) (*domain.Challenge, error) {
	args := m.Called(ctx, email, phone, method)
	ch, _ := args.Get(0).(*domain.Challenge)
	return ch, args.Error(1)
}

func (m *mockOTP) ResendPhoneOTP(ctx context.Context, email string, method domain.Method) (*domain.Challenge, error) {
	args := m.Called(ctx, email, method)
	ch, _ := args.Get(0).(*domain.Challenge)
	return ch, args.Error(1)
}

func (m *mockOTP) VerifyEmailOTP(ctx context.Context, email, code string) (*otp.VerifyResult, error) {
	args := m.Called(ctx, email, code)
	res, _ := args.Get(0).(*otp.VerifyResult)
	return res, args.Error(1)
}

func (m *mockOTP) VerifyPhoneOTP(ctx context.Context, email, code string) (*otp.VerifyResult, error) {
	args := m.Called(ctx, email, code)
	res, _ := args.Get(0).(*otp.VerifyResult)
	return res, args.Error(1)
}

func (m *mockOTP) ChangeEmail(ctx context.Context, oldEmail, newEmail string) (*otp.ChangeEmailResult, error) {
	args := m.Called(ctx, oldEmail, newEmail)
	res, _ := args.Get(0).(*otp.ChangeEmailResult)
	return res, args.Error(1)
}

type stubSigner struct {
	token string
	err   error
}

func (s stubSigner) Sign(*domain.User) (string, error) { return s.token, s.err }

func jsonReq(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(method, target, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderFromKeys(key, &key.PublicKey, time.Hour)
}

// serveWithSession runs h behind the session middleware with a token for email.
func serveWithSession(t *testing.T, h http.HandlerFunc, r *http.Request, email string) *httptest.ResponseRecorder {
	t.Helper()
	p := newTestJWTProvider(t)
	tok, err := p.Sign(&domain.User{UserID: "u1", Email: email, EmailVerified: true})
	require.NoError(t, err)
	r.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	middleware.Session(p)(h).ServeHTTP(rr, r)
	return rr
}

func testUser() *domain.User {
	phone := "+2348012345678"
	return &domain.User{
		UserID:        "01HZX",
		Email:         "ada@example.com",
		EmailVerified: true,
		PhoneNumber:   &phone,
		Username:      "ada1",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		DOB:           "1990-12-10",
		ReferralCode:  "REF1",
	}
}
