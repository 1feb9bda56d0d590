package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zabira-api/internal/domain"
	"github.com/zabira-api/internal/pkg/clock"
	"github.com/zabira-api/internal/pkg/otpcode"
	"github.com/zabira-api/internal/pkg/validate"
	"go.uber.org/zap"
)

// VerifyResult is returned by a successful verification. AlreadyVerified is
// set when the identity had been proven before and the code was not checked.
type VerifyResult struct {
	User            *domain.User
	AlreadyVerified bool
}

// ChangeEmailResult pairs the updated record with the challenge sent to the new address.
type ChangeEmailResult struct {
	User      *domain.User
	Challenge *domain.Challenge
}

// Service issues and verifies one-time passcodes for email and phone identities.
//
// Issue methods persist the challenge before dispatching it. When dispatch
// fails they return the challenge together with an error wrapping
// domain.ErrDispatch; the stored code stays valid and callers may resend.
type Service interface {
	IssueEmailOTP(ctx context.Context, email string) (*domain.Challenge, error)
	IssuePhoneOTP(ctx context.Context, email, phone string, method domain.Method) (*domain.Challenge, error)
	ResendPhoneOTP(ctx context.Context, email string, method domain.Method) (*domain.Challenge, error)
	VerifyEmailOTP(ctx context.Context, email, code string) (*VerifyResult, error)
	VerifyPhoneOTP(ctx context.Context, email, code string) (*VerifyResult, error)
	ChangeEmail(ctx context.Context, oldEmail, newEmail string) (*ChangeEmailResult, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, to string, ch *domain.Challenge) error
}

type codeGenerator interface {
	Generate() (string, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

type ServiceDeps struct {
	UserRepo userStore
	Channel  dispatcher
	Codes    codeGenerator
	Clock    clock.Clock
	Events   eventPublisher // optional
	Logger   *zap.Logger    // optional
	TTL      time.Duration  // zero means domain.OTPTTL
}

type service struct {
	repo    userStore
	channel dispatcher
	codes   codeGenerator
	clock   clock.Clock
	events  eventPublisher
	log     *zap.Logger
	ttl     time.Duration
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:    deps.UserRepo,
		channel: deps.Channel,
		codes:   deps.Codes,
		clock:   deps.Clock,
		events:  deps.Events,
		log:     deps.Logger,
		ttl:     deps.TTL,
	}
	if s.codes == nil {
		s.codes = otpcode.New(false)
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.ttl <= 0 {
		s.ttl = domain.OTPTTL
	}
	return s
}

func (s *service) IssueEmailOTP(ctx context.Context, email string) (*domain.Challenge, error) {
	u, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.EmailVerified {
		return nil, domain.Errorf(domain.ErrAlreadyVerified, "Email already verified")
	}
	return s.issue(ctx, u, domain.PurposeEmailVerify, domain.MethodEmail, u.Email, nil)
}

func (s *service) IssuePhoneOTP(ctx context.Context, email, phone string, method domain.Method) (*domain.Challenge, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, domain.Errorf(domain.ErrBadRequest, "Email and phone number are required")
	}
	if method != domain.MethodSMS && method != domain.MethodWhatsApp {
		return nil, domain.Errorf(domain.ErrBadRequest, "Unsupported delivery method %q", method)
	}
	u, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	// A new number is unproven even when it equals the old one.
	extra := map[string]interface{}{
		domain.FieldPhoneNumber:   phone,
		domain.FieldPhoneVerified: false,
	}
	ch, err := s.issue(ctx, u, domain.PurposePhoneVerify, method, phone, extra)
	if ch != nil {
		u.PhoneNumber = &phone
		u.PhoneVerified = false
	}
	return ch, err
}

func (s *service) ResendPhoneOTP(ctx context.Context, email string, method domain.Method) (*domain.Challenge, error) {
	if method != domain.MethodSMS && method != domain.MethodWhatsApp {
		return nil, domain.Errorf(domain.ErrBadRequest, "Unsupported delivery method %q", method)
	}
	u, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.PhoneVerified {
		return nil, domain.Errorf(domain.ErrAlreadyVerified, "Phone already verified")
	}
	if u.PhoneNumber == nil || *u.PhoneNumber == "" {
		return nil, domain.Errorf(domain.ErrBadRequest, "No phone number on file")
	}
	return s.issue(ctx, u, domain.PurposePhoneVerify, method, *u.PhoneNumber, nil)
}

func (s *service) VerifyEmailOTP(ctx context.Context, email, code string) (*VerifyResult, error) {
	if !otpcode.Valid(code) {
		return nil, domain.Errorf(domain.ErrBadRequest, "Invalid OTP format. Must be 6 digits.")
	}
	u, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.EmailVerified {
		otpVerifications.WithLabelValues(string(domain.PurposeEmailVerify), "already_verified").Inc()
		return &VerifyResult{User: u, AlreadyVerified: true}, nil
	}
	if err := s.check(u.EmailOTP, u.EmailOTPExpiry, code, domain.PurposeEmailVerify); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, u.UserID, map[string]interface{}{
		domain.FieldEmailVerified:  true,
		domain.FieldEmailOTP:       "",
		domain.FieldEmailOTPExpiry: nil,
	}); err != nil {
		return nil, fmt.Errorf("mark email verified: %w", err)
	}
	u.EmailVerified = true
	u.EmailOTP = ""
	u.EmailOTPExpiry = nil
	s.publish(ctx, domain.EventUserEmailVerified, u)
	return &VerifyResult{User: u}, nil
}

func (s *service) VerifyPhoneOTP(ctx context.Context, email, code string) (*VerifyResult, error) {
	if !otpcode.Valid(code) {
		return nil, domain.Errorf(domain.ErrBadRequest, "Invalid OTP format. Must be 6 digits.")
	}
	u, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.PhoneVerified {
		otpVerifications.WithLabelValues(string(domain.PurposePhoneVerify), "already_verified").Inc()
		return &VerifyResult{User: u, AlreadyVerified: true}, nil
	}
	if err := s.check(u.PhoneOTP, u.PhoneOTPExpiry, code, domain.PurposePhoneVerify); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, u.UserID, map[string]interface{}{
		domain.FieldPhoneVerified:  true,
		domain.FieldPhoneOTP:       "",
		domain.FieldPhoneOTPExpiry: nil,
	}); err != nil {
		return nil, fmt.Errorf("mark phone verified: %w", err)
	}
	u.PhoneVerified = true
	u.PhoneOTP = ""
	u.PhoneOTPExpiry = nil
	s.publish(ctx, domain.EventUserPhoneVerified, u)
	return &VerifyResult{User: u}, nil
}

func (s *service) ChangeEmail(ctx context.Context, oldEmail, newEmail string) (*ChangeEmailResult, error) {
	oldEmail = validate.NormalizeEmail(oldEmail)
	newEmail = validate.NormalizeEmail(newEmail)
	if oldEmail == "" || newEmail == "" {
		return nil, domain.Errorf(domain.ErrBadRequest, "Both old and new email are required")
	}
	if !validate.EmailShape(newEmail) {
		return nil, domain.Errorf(domain.ErrBadRequest, "Invalid email format")
	}
	u, err := s.lookup(ctx, oldEmail)
	if err != nil {
		return nil, err
	}
	other, err := s.repo.GetByEmail(ctx, newEmail)
	switch {
	case err == nil && other.UserID != u.UserID:
		return nil, domain.Errorf(domain.ErrConflict, "This email is already registered")
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("check new email: %w", err)
	}

	extra := map[string]interface{}{
		domain.FieldEmail:         newEmail,
		domain.FieldEmailVerified: false,
	}
	ch, err := s.issue(ctx, u, domain.PurposeEmailChange, domain.MethodEmail, newEmail, extra)
	if ch == nil {
		// The store has the final word when another change claims the address first.
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.Errorf(domain.ErrConflict, "This email is already registered")
		}
		return nil, err
	}
	u.Email = newEmail
	u.EmailVerified = false
	s.publish(ctx, domain.EventUserEmailChanged, u)
	return &ChangeEmailResult{User: u, Challenge: ch}, err
}

// issue generates a code, persists it (with any extra field updates) in a
// single store write, then hands it to the channel.
func (s *service) issue(ctx context.Context, u *domain.User, purpose domain.Purpose, method domain.Method, to string, extra map[string]interface{}) (*domain.Challenge, error) {
	code, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}
	issuedAt := s.clock.Now()
	expiresAt := issuedAt.Add(s.ttl)

	updates := make(map[string]interface{}, len(extra)+2)
	for k, v := range extra {
		updates[k] = v
	}
	codeField, expiryField := domain.FieldEmailOTP, domain.FieldEmailOTPExpiry
	if purpose == domain.PurposePhoneVerify {
		codeField, expiryField = domain.FieldPhoneOTP, domain.FieldPhoneOTPExpiry
	}
	updates[codeField] = code
	updates[expiryField] = expiresAt

	if err := s.repo.Update(ctx, u.UserID, updates); err != nil {
		return nil, fmt.Errorf("persist %s challenge: %w", purpose, err)
	}
	if purpose == domain.PurposePhoneVerify {
		u.PhoneOTP, u.PhoneOTPExpiry = code, &expiresAt
	} else {
		u.EmailOTP, u.EmailOTPExpiry = code, &expiresAt
	}
	otpIssued.WithLabelValues(string(purpose), string(method)).Inc()

	ch := &domain.Challenge{
		Code:       code,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		SubjectKey: to,
		Purpose:    purpose,
		Method:     method,
	}
	if err := s.channel.Dispatch(ctx, to, ch); err != nil {
		otpDispatchFailures.WithLabelValues(string(method)).Inc()
		s.log.Warn("otp dispatch failed",
			zap.String("user_id", u.UserID),
			zap.String("purpose", string(purpose)),
			zap.String("method", string(method)),
			zap.Error(err),
		)
		return ch, domain.Wrap(domain.ErrDispatch, err, fmt.Sprintf("Could not send code via %s. Please request a new one.", method))
	}
	return ch, nil
}

func (s *service) check(stored string, expiry *time.Time, submitted string, purpose domain.Purpose) error {
	if expiry == nil || s.clock.Now().After(*expiry) {
		otpVerifications.WithLabelValues(string(purpose), "expired").Inc()
		return domain.Errorf(domain.ErrExpired, "OTP has expired. Please request a new one.")
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
		otpVerifications.WithLabelValues(string(purpose), "invalid").Inc()
		return domain.Errorf(domain.ErrInvalidCode, "Invalid OTP. Please check and try again.")
	}
	otpVerifications.WithLabelValues(string(purpose), "ok").Inc()
	return nil
}

func (s *service) lookup(ctx context.Context, email string) (*domain.User, error) {
	email = validate.NormalizeEmail(email)
	if email == "" {
		return nil, domain.Errorf(domain.ErrBadRequest, "Email is required")
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Errorf(domain.ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

func (s *service) publish(ctx context.Context, typ string, u *domain.User) {
	if s.events == nil {
		return
	}
	e := domain.Event{Type: typ, UserID: u.UserID, Email: u.Email, OccurredAt: s.clock.Now()}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("event publish failed", zap.String("type", typ), zap.String("user_id", u.UserID), zap.Error(err))
	}
}
