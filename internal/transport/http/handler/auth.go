package handler

import (
	"errors"
	"net/http"

	"github.com/zabira-api/internal/application/account"
	"github.com/zabira-api/internal/application/otp"
	"github.com/zabira-api/internal/domain"
	"go.uber.org/zap"
)

// TokenSigner issues session tokens after login or email verification.
type TokenSigner interface {
	Sign(u *domain.User) (string, error)
}

// Options carries settings shared by all handlers.
type Options struct {
	// Debug echoes issued codes under "debug.otp".
	Debug  bool
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) debugInfo(ch *domain.Challenge) *DebugInfo {
	if !o.Debug || ch == nil {
		return nil
	}
	return &DebugInfo{OTP: ch.Code}
}

// AuthHandler serves signup, login and the email verification routes.
type AuthHandler struct {
	accounts account.Service
	otp      otp.Service
	tokens   TokenSigner
	opts     Options
	log      *zap.Logger
}

func NewAuthHandler(accounts account.Service, otpSvc otp.Service, tokens TokenSigner, opts Options) *AuthHandler {
	return &AuthHandler{accounts: accounts, otp: otpSvc, tokens: tokens, opts: opts, log: opts.logger()}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.accounts.Signup(r.Context(), req)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	msg := "Account created successfully. OTP sent to your email."
	if res.DispatchErr != nil {
		msg = "Account created successfully, but we could not send your OTP. Please request a new one."
	}
	writeJSON(w, http.StatusCreated, ChallengeEnvelope{
		Message: msg,
		User:    toAccountView(res.User),
		Debug:   h.opts.debugInfo(res.Challenge),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.accounts.Login(r.Context(), req)
	if errors.Is(err, domain.ErrForbidden) && res != nil {
		writeJSON(w, http.StatusForbidden, LoginEnvelope{
			Error:                domain.Message(err, "forbidden"),
			RequiresVerification: true,
			Email:                res.User.Email,
		})
		return
	}
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginEnvelope{
		Message: "Login successful",
		User:    toProfileView(res.User),
		Token:   res.Token,
	})
}

// VerifyEmail handles POST /auth/verify.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Email == "" || body.OTP == "" {
		writeError(w, http.StatusBadRequest, "Email and OTP are required")
		return
	}
	res, err := h.otp.VerifyEmailOTP(r.Context(), body.Email, body.OTP)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	if res.AlreadyVerified {
		writeJSON(w, http.StatusOK, VerifyEnvelope{Message: "Email already verified", User: toAccountView(res.User)})
		return
	}
	env := VerifyEnvelope{Message: "Email verified successfully", User: toAccountView(res.User)}
	if h.tokens != nil {
		tok, err := h.tokens.Sign(res.User)
		if err != nil {
			h.log.Error("sign session after verification", zap.String("user_id", res.User.UserID), zap.Error(err))
		}
		env.Token = tok
	}
	writeJSON(w, http.StatusOK, env)
}

// ResendEmail handles GET /auth/verify?email=.
func (h *AuthHandler) ResendEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	ch, err := h.otp.IssueEmailOTP(r.Context(), email)
	if errors.Is(err, domain.ErrAlreadyVerified) {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Email already verified"})
		return
	}
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ChallengeEnvelope{
		Message: "New OTP sent to your email",
		Debug:   h.opts.debugInfo(ch),
	})
}

// ChangeEmail handles PUT /auth/verify.
func (h *AuthHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OldEmail string `json:"oldEmail"`
		NewEmail string `json:"newEmail"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.otp.ChangeEmail(r.Context(), body.OldEmail, body.NewEmail)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ChallengeEnvelope{
		Message: "Email updated successfully. New OTP sent.",
		User:    toAccountView(res.User),
		Debug:   h.opts.debugInfo(res.Challenge),
	})
}
