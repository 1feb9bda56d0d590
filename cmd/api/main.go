package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zabira-api/internal/config"
	"github.com/zabira-api/internal/domain"
	"github.com/zabira-api/internal/infrastructure/channel"
	"github.com/zabira-api/internal/infrastructure/dynamo"
	"github.com/zabira-api/internal/infrastructure/jsonstore"
	jwtinfra "github.com/zabira-api/internal/infrastructure/jwt"
	"github.com/zabira-api/internal/infrastructure/kafka"
	"github.com/zabira-api/internal/infrastructure/postgres"
	s3infra "github.com/zabira-api/internal/infrastructure/s3"
	"github.com/zabira-api/internal/infrastructure/smtp"
	"github.com/zabira-api/internal/infrastructure/sns"
	"github.com/zabira-api/internal/pkg/otpcode"
	transporthttp "github.com/zabira-api/internal/transport/http"
	appmiddleware "github.com/zabira-api/internal/transport/http/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	users, closeStore, err := openUserStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	dispatcher, err := newDispatcher(ctx, cfg, log)
	if err != nil {
		return err
	}

	var events interface {
		transporthttp.EventPublisher
		Close() error
	} = kafka.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		events = kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log.Named("kafka"))
	}
	defer func() { _ = events.Close() }()

	deps := &transporthttp.Deps{
		UserRepo:    users,
		Dispatcher:  dispatcher,
		Codes:       otpcode.New(cfg.OTP.LegacyRange),
		Events:      events,
		Logger:      log,
		RateLimiter: appmiddleware.NewRateLimiter(rate.Limit(5), 10),
	}
	defer deps.RateLimiter.Stop()

	// Sessions are optional; without keys login and verification still work
	// but no token is returned.
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		deps.Tokens = p
	} else {
		log.Warn("session tokens disabled", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv),
			zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func openUserStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (transporthttp.UserRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewUserRepo(pool), pool.Close, nil

	case config.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoUsers, log.Named("dynamo"))
		return dynamo.NewUserRepo(client, cfg.DynamoUsers), func() {}, nil
	}

	if cfg.UsersFile.Bucket != "" {
		client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return jsonstore.New(s3infra.NewBlob(client, cfg.UsersFile.Bucket, cfg.UsersFile.Key)), func() {}, nil
	}
	return jsonstore.New(jsonstore.NewFileBlob(cfg.UsersFile.Path)), func() {}, nil
}

func newDispatcher(ctx context.Context, cfg *config.Config, log *zap.Logger) (*channel.Dispatcher, error) {
	console := channel.NewConsole(log.Named("otp-console"))
	senders := map[domain.Method]channel.Sender{
		domain.MethodEmail:    console,
		domain.MethodSMS:      console,
		domain.MethodWhatsApp: console,
	}
	if cfg.OTP.EmailSender == "smtp" {
		senders[domain.MethodEmail] = channel.NewEmail(smtp.NewMailer(cfg))
	}
	if cfg.OTP.SMSSender == "sns" {
		s, err := sns.NewSender(ctx, cfg)
		if err != nil {
			return nil, err
		}
		senders[domain.MethodSMS] = channel.NewSMS(s)
	}
	return channel.NewDispatcher(senders), nil
}
