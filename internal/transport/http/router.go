package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zabira-api/internal/application/account"
	"github.com/zabira-api/internal/application/otp"
	"github.com/zabira-api/internal/config"
	"github.com/zabira-api/internal/transport/http/handler"
	appmiddleware "github.com/zabira-api/internal/transport/http/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(appmiddleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	sessionMw := func(next http.Handler) http.Handler { return next }
	var signer handler.TokenSigner
	if deps.Tokens != nil {
		sessionMw = appmiddleware.Session(deps.Tokens)
		signer = deps.Tokens
	}

	// 5 requests/second, burst of 10, on signup, login and code checks.
	sensitiveRL := deps.RateLimiter
	if sensitiveRL == nil {
		sensitiveRL = appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	}

	otpSvc := otp.NewService(otp.ServiceDeps{
		UserRepo: deps.UserRepo,
		Channel:  deps.Dispatcher,
		Codes:    deps.Codes,
		Clock:    deps.Clock,
		Events:   deps.Events,
		Logger:   log.Named("otp"),
	})
	accountSvc := account.NewService(account.ServiceDeps{
		UserRepo: deps.UserRepo,
		OTP:      otpSvc,
		Tokens:   signer,
		Clock:    deps.Clock,
		Events:   deps.Events,
		Logger:   log.Named("account"),
	})

	opts := handler.Options{Debug: cfg.OTP.Debug, Logger: log}
	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(accountSvc, otpSvc, signer, opts)
	phoneH := handler.NewPhoneHandler(otpSvc, opts)
	profileH := handler.NewProfileHandler(accountSvc, opts)

	r.Get("/health-check/ping", healthH.Ping)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.With(sensitiveRL.Limit).Post("/signup", authH.Signup)
		r.With(sensitiveRL.Limit).Post("/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/verify", authH.VerifyEmail)
		r.Get("/verify", authH.ResendEmail)
		r.Put("/verify", authH.ChangeEmail)
	})

	r.Route("/profile", func(r chi.Router) {
		r.Use(sessionMw)

		r.Post("/phone", phoneH.Send)
		r.With(sensitiveRL.Limit).Put("/phone", phoneH.Verify)
		r.Get("/phone", phoneH.Resend)
		r.Post("/personal-info", profileH.SavePersonalInfo)
		r.Get("/personal-info", profileH.GetPersonalInfo)
	})

	return r
}
