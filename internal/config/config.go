package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreJSON     = "json"
	StorePostgres = "postgres"
	StoreDynamo   = "dynamo"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"3000"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"json"`
	UsersFile   UsersFile
	DatabaseURL string `env:"DATABASE_URL"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoUsers    string `env:"DYNAMO_TABLE_USERS" envDefault:"users"`

	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./private_key.pem"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./public_key.pem"`
	JWTExpiry         time.Duration `env:"JWT_EXPIRY" envDefault:"168h"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@zabira.app"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SNSRegion    string `env:"SNS_REGION" envDefault:"us-east-1"`

	OTP OTP

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"zabira.users"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-Ip.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`
}

// UsersFile locates the JSON user store. With Bucket set the file lives in S3.
type UsersFile struct {
	Path   string `env:"USERS_FILE_PATH" envDefault:"./data/users.json"`
	Bucket string `env:"USERS_FILE_S3_BUCKET"`
	Key    string `env:"USERS_FILE_S3_KEY" envDefault:"users.json"`
}

// OTP controls code generation and delivery.
type OTP struct {
	// Debug echoes issued codes in API responses. Never enable in production.
	Debug       bool   `env:"OTP_DEBUG" envDefault:"false"`
	LegacyRange bool   `env:"OTP_LEGACY_RANGE" envDefault:"false"`
	EmailSender string `env:"OTP_EMAIL_SENDER" envDefault:"console"` // console | smtp
	SMSSender   string `env:"OTP_SMS_SENDER" envDefault:"console"`   // console | sns
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreJSON, StoreDynamo:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("missing DATABASE_URL for STORE_DRIVER=%s", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.OTP.EmailSender {
	case "console", "smtp":
	default:
		return fmt.Errorf("unknown OTP_EMAIL_SENDER %q", c.OTP.EmailSender)
	}
	switch c.OTP.SMSSender {
	case "console", "sns":
	default:
		return fmt.Errorf("unknown OTP_SMS_SENDER %q", c.OTP.SMSSender)
	}
	return nil
}

// IsDevelopment reports whether the app runs with APP_ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
