package http

import (
	"context"

	"github.com/zabira-api/internal/domain"
	jwtinfra "github.com/zabira-api/internal/infrastructure/jwt"
	"github.com/zabira-api/internal/pkg/clock"
	appmiddleware "github.com/zabira-api/internal/transport/http/middleware"
	"go.uber.org/zap"
)

// UserRepository is the minimal interface the router requires from a user store.
// The JSON, Postgres and DynamoDB adapters all satisfy it.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// Dispatcher delivers an issued code over its method's channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, to string, ch *domain.Challenge) error
}

// CodeGenerator produces fresh 6-digit codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// EventPublisher receives account lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// TokenProvider signs and verifies session tokens.
type TokenProvider interface {
	Sign(u *domain.User) (string, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	Dispatcher  Dispatcher
	Codes       CodeGenerator
	Events      EventPublisher // optional
	Tokens      TokenProvider  // optional; without it no session tokens are issued
	Clock       clock.Clock    // optional
	Logger      *zap.Logger    // optional
	RateLimiter *appmiddleware.RateLimiter
}
