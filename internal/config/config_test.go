package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("OTP_DEBUG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, StoreJSON, cfg.StoreDriver)
	assert.Equal(t, 168*time.Hour, cfg.JWTExpiry)
	assert.False(t, cfg.OTP.Debug)
	assert.Equal(t, "console", cfg.OTP.EmailSender)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.TrustProxy)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/zabira")
	t.Setenv("OTP_DEBUG", "true")
	t.Setenv("OTP_LEGACY_RANGE", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ALLOWED_ORIGINS", "https://a.io,https://b.io")
	t.Setenv("JWT_EXPIRY", "30m")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.True(t, cfg.OTP.Debug)
	assert.True(t, cfg.OTP.LegacyRange)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://a.io", "https://b.io"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.JWTExpiry)
	assert.True(t, cfg.TrustProxy)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{"unknown email sender", map[string]string{"STORE_DRIVER": "json", "OTP_EMAIL_SENDER": "pigeon"}},
		{"unknown sms sender", map[string]string{"STORE_DRIVER": "json", "OTP_SMS_SENDER": "twilio"}},
		{"bad bool", map[string]string{"STORE_DRIVER": "json", "OTP_DEBUG": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
