package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zabira-api/internal/domain"
	"github.com/zabira-api/internal/pkg/clock"
	"github.com/zabira-api/internal/pkg/id"
	"github.com/zabira-api/internal/pkg/validate"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SignupResult is a freshly created account and the email challenge issued for it.
// Challenge is nil only when issuing failed; DispatchErr is set when the code
// was stored but could not be sent.
type SignupResult struct {
	User        *domain.User
	Challenge   *domain.Challenge
	DispatchErr error
}

type LoginResult struct {
	User  *domain.User
	Token string
}

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*SignupResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	SavePersonalInfo(ctx context.Context, req domain.PersonalInfoRequest) (*domain.User, error)
	GetPersonalInfo(ctx context.Context, email string) (*domain.User, error)
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type emailIssuer interface {
	IssueEmailOTP(ctx context.Context, email string) (*domain.Challenge, error)
}

type tokenSigner interface {
	Sign(u *domain.User) (string, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

type ServiceDeps struct {
	UserRepo userStore
	OTP      emailIssuer
	Tokens   tokenSigner
	Clock    clock.Clock
	Events   eventPublisher // optional
	Logger   *zap.Logger    // optional
	HashCost int            // zero means bcrypt.DefaultCost
}

type service struct {
	repo     userStore
	otp      emailIssuer
	tokens   tokenSigner
	clock    clock.Clock
	events   eventPublisher
	log      *zap.Logger
	hashCost int
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:     deps.UserRepo,
		otp:      deps.OTP,
		tokens:   deps.Tokens,
		clock:    deps.Clock,
		events:   deps.Events,
		log:      deps.Logger,
		hashCost: deps.HashCost,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	return s
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*SignupResult, error) {
	req.Email = validate.NormalizeEmail(req.Email)
	switch {
	case req.Email == "" || req.Password == "":
		return nil, domain.Errorf(domain.ErrBadRequest, "Email and password are required")
	case !req.AgreeToTerms:
		return nil, domain.Errorf(domain.ErrBadRequest, "You must agree to the terms and conditions")
	case !validate.EmailShape(req.Email):
		return nil, domain.Errorf(domain.ErrBadRequest, "Invalid email format")
	case len(req.Password) < 8:
		return nil, domain.Errorf(domain.ErrBadRequest, "Password must be at least 8 characters")
	}
	if err := validate.Struct(req); err != nil {
		return nil, domain.Errorf(domain.ErrBadRequest,
			"Password must be at most 72 characters and include upper and lower case letters, a number and a special character")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	u := &domain.User{
		UserID:       id.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		ReferralCode: strings.TrimSpace(req.ReferralCode),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.Errorf(domain.ErrConflict, "An account with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.publish(ctx, domain.EventUserRegistered, u)

	res := &SignupResult{User: u}
	ch, err := s.otp.IssueEmailOTP(ctx, u.Email)
	switch {
	case err == nil:
		res.Challenge = ch
	case errors.Is(err, domain.ErrDispatch):
		// The account and its code exist; the client can ask for a resend.
		s.log.Warn("signup otp not delivered", zap.String("user_id", u.UserID), zap.Error(err))
		res.Challenge = ch
		res.DispatchErr = err
	default:
		return nil, fmt.Errorf("issue signup otp: %w", err)
	}
	if ch != nil {
		u.EmailOTP = ch.Code
		u.EmailOTPExpiry = &ch.ExpiresAt
	}
	return res, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	email := validate.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, domain.Errorf(domain.ErrBadRequest, "Email and password are required")
	}
	invalid := domain.Errorf(domain.ErrUnauthorized, "Invalid email or password")

	u, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, invalid
	}
	if !u.EmailVerified {
		return &LoginResult{User: u}, domain.Errorf(domain.ErrForbidden, "Please verify your email before logging in")
	}

	res := &LoginResult{User: u}
	if s.tokens != nil {
		if res.Token, err = s.tokens.Sign(u); err != nil {
			return nil, fmt.Errorf("sign session: %w", err)
		}
	}
	return res, nil
}

func (s *service) SavePersonalInfo(ctx context.Context, req domain.PersonalInfoRequest) (*domain.User, error) {
	email := validate.NormalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.DOB = strings.TrimSpace(req.DOB)

	if email == "" || req.Username == "" || req.FirstName == "" || req.LastName == "" {
		return nil, domain.Errorf(domain.ErrBadRequest, "Email, username, firstname, and lastname are required")
	}
	if validate.Var(req.Username, "alphanum_mix") != nil {
		return nil, domain.Errorf(domain.ErrBadRequest, "Username must contain both a letter and a number")
	}
	if req.DOB != "" && validate.Var(req.DOB, "datetime=2006-01-02") != nil {
		return nil, domain.Errorf(domain.ErrBadRequest, "Date of birth must be in YYYY-MM-DD format")
	}

	u, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	other, err := s.repo.GetByUsername(ctx, req.Username)
	switch {
	case err == nil && other.UserID != u.UserID:
		return nil, domain.Errorf(domain.ErrConflict, "Username is already taken")
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("check username: %w", err)
	}

	updates := map[string]interface{}{
		domain.FieldUsername:  req.Username,
		domain.FieldFirstName: req.FirstName,
		domain.FieldLastName:  req.LastName,
	}
	// An omitted dob keeps the stored one.
	if req.DOB != "" {
		updates[domain.FieldDOB] = req.DOB
	}
	if err := s.repo.Update(ctx, u.UserID, updates); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.Errorf(domain.ErrConflict, "Username is already taken")
		}
		return nil, fmt.Errorf("save personal info: %w", err)
	}
	if err := u.Apply(updates); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) GetPersonalInfo(ctx context.Context, email string) (*domain.User, error) {
	email = validate.NormalizeEmail(email)
	if email == "" {
		return nil, domain.Errorf(domain.ErrBadRequest, "Email is required")
	}
	return s.lookup(ctx, email)
}

func (s *service) lookup(ctx context.Context, email string) (*domain.User, error) {
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
