package domain

import "time"

// OTPTTL is the validity window of every issued code.
const OTPTTL = 5 * time.Minute

// Purpose names what a challenge proves.
type Purpose string

const (
	PurposeEmailVerify Purpose = "email-verify"
	PurposePhoneVerify Purpose = "phone-verify"
	PurposeEmailChange Purpose = "email-change"
)

// Method is the channel a code is delivered through.
type Method string

const (
	MethodEmail    Method = "email"
	MethodSMS      Method = "sms"
	MethodWhatsApp Method = "whatsapp"
)

// ParsePhoneMethod maps a client-supplied method to sms or whatsapp.
// Empty input defaults to whatsapp.
func ParsePhoneMethod(s string) (Method, bool) {
	switch Method(s) {
	case "", MethodWhatsApp:
		return MethodWhatsApp, true
	case MethodSMS:
		return MethodSMS, true
	}
	return "", false
}

// Challenge is an issued, not yet verified code.
type Challenge struct {
	Code       string    `json:"-"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	SubjectKey string    `json:"subject"`
	Purpose    Purpose   `json:"purpose"`
	Method     Method    `json:"method"`
}

// TTL is the validity window the challenge was issued with.
func (c *Challenge) TTL() time.Duration {
	if c.IssuedAt.IsZero() {
		return OTPTTL
	}
	return c.ExpiresAt.Sub(c.IssuedAt)
}
