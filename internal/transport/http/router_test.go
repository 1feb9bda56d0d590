package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zabira-api/internal/config"
	"github.com/zabira-api/internal/domain"
	"github.com/zabira-api/internal/infrastructure/jsonstore"
	jwtinfra "github.com/zabira-api/internal/infrastructure/jwt"
	"github.com/zabira-api/internal/pkg/otpcode"
	appmiddleware "github.com/zabira-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// outbox records every dispatched code by recipient.
type outbox struct {
	mu   sync.Mutex
	sent map[string]*domain.Challenge
}

func (o *outbox) Dispatch(_ context.Context, to string, ch *domain.Challenge) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent[to] = ch
	return nil
}

func (o *outbox) last(to string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ch, ok := o.sent[to]; ok {
		return ch.Code
	}
	return ""
}

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	outbox *outbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLimit(t, rate.Limit(1000), 1000)
}

func newTestServerWithLimit(t *testing.T, limit rate.Limit, burst int) *testServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	box := &outbox{sent: map[string]*domain.Challenge{}}
	rl := appmiddleware.NewRateLimiter(limit, burst)
	t.Cleanup(rl.Stop)

	cfg := &config.Config{AllowedOrigins: []string{"*"}}
	deps := &Deps{
		UserRepo:    jsonstore.New(jsonstore.NewFileBlob(filepath.Join(t.TempDir(), "users.json"))),
		Dispatcher:  box,
		Codes:       otpcode.New(false),
		Tokens:      jwtinfra.NewProviderFromKeys(key, &key.PublicKey, time.Hour),
		RateLimiter: rl,
	}
	srv := httptest.NewServer(NewRouter(cfg, deps))
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, outbox: box}
}

func (s *testServer) do(method, path string, body interface{}, token string) (int, map[string]interface{}) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(http.MethodGet, "/health-check/ping", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", body["message"])

	resp, err := s.srv.Client().Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_SignupVerifyLogin(t *testing.T) {
	s := newTestServer(t)
	const email = "ada@example.com"
	const password = "Str0ng!Passw0rd"

	status, body := s.do(http.MethodPost, "/auth/signup", map[string]interface{}{
		"email": "Ada@Example.com", "password": password, "agreeToTerms": true,
	}, "")
	require.Equal(t, http.StatusCreated, status, body)
	assert.NotContains(t, body, "debug")
	code := s.outbox.last(email)
	require.Len(t, code, 6)

	status, body = s.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, true, body["requiresVerification"])

	status, body = s.do(http.MethodPost, "/auth/verify", map[string]string{"email": email, "otp": code}, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Email verified successfully", body["message"])
	assert.NotEmpty(t, body["token"])

	// A second verification with the same code is a no-op.
	status, body = s.do(http.MethodPost, "/auth/verify", map[string]string{"email": email, "otp": code}, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Email already verified", body["message"])

	status, body = s.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	status, body = s.do(http.MethodPost, "/profile/personal-info", map[string]string{
		"username": "ada1", "firstname": "Ada", "lastname": "Lovelace", "dob": "1990-12-10",
	}, token)
	require.Equal(t, http.StatusOK, status, body)

	status, body = s.do(http.MethodGet, "/profile/personal-info", nil, token)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "ada1", body["username"])

	status, _ = s.do(http.MethodGet, "/profile/personal-info?email=eve@example.com", nil, token)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRouter_PhoneFlow(t *testing.T) {
	s := newTestServer(t)
	const email = "bob@example.com"

	status, _ := s.do(http.MethodPost, "/auth/signup", map[string]interface{}{
		"email": email, "password": "Str0ng!Passw0rd", "agreeToTerms": true,
	}, "")
	require.Equal(t, http.StatusCreated, status)

	status, body := s.do(http.MethodPost, "/profile/phone", map[string]string{
		"email": email, "phoneNumber": "+15550001", "method": "sms",
	}, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "OTP sent to +15550001 via sms", body["message"])

	status, _ = s.do(http.MethodPut, "/profile/phone", map[string]string{"email": email, "otp": "12345"}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(http.MethodPut, "/profile/phone", map[string]string{
		"email": email, "otp": s.outbox.last("+15550001"),
	}, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "+15550001", body["phoneNumber"])

	status, body = s.do(http.MethodGet, "/profile/phone?email="+email, nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Phone already verified", body["message"])
}

func TestRouter_InvalidSessionRejected(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(http.MethodGet, "/profile/personal-info?email=a@b.co", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_CodeChecksAreRateLimited(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   map[string]string
	}{
		{"email verify", http.MethodPost, "/auth/verify", map[string]string{"email": "ada@example.com", "otp": "000000"}},
		{"phone verify", http.MethodPut, "/profile/phone", map[string]string{"email": "ada@example.com", "otp": "000000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServerWithLimit(t, rate.Every(time.Hour), 3)

			for i := 0; i < 3; i++ {
				status, _ := s.do(tt.method, tt.path, tt.body, "")
				assert.NotEqual(t, http.StatusTooManyRequests, status, "attempt %d", i+1)
			}
			status, body := s.do(tt.method, tt.path, tt.body, "")
			assert.Equal(t, http.StatusTooManyRequests, status)
			assert.Equal(t, "too many requests", body["error"])
		})
	}
}

func TestRouter_TrustProxyKeysOnForwardedAddress(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rl := appmiddleware.NewRateLimiter(rate.Every(time.Hour), 1)
	t.Cleanup(rl.Stop)

	cfg := &config.Config{AllowedOrigins: []string{"*"}, TrustProxy: true}
	deps := &Deps{
		UserRepo:    jsonstore.New(jsonstore.NewFileBlob(filepath.Join(t.TempDir(), "users.json"))),
		Dispatcher:  &outbox{sent: map[string]*domain.Challenge{}},
		Codes:       otpcode.New(false),
		Tokens:      jwtinfra.NewProviderFromKeys(key, &key.PublicKey, time.Hour),
		RateLimiter: rl,
	}
	h := NewRouter(cfg, deps)

	send := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/verify", bytes.NewBufferString(`{"email":"ada@example.com","otp":"000000"}`))
		req.RemoteAddr = "10.0.0.254:443"
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.NotEqual(t, http.StatusTooManyRequests, send("203.0.113.1"))
	assert.NotEqual(t, http.StatusTooManyRequests, send("203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.1"))
}
