package handler

import (
	"encoding/json"
	"net/http"

	"github.com/zabira-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DebugInfo echoes the issued code when OTP_DEBUG is on.
type DebugInfo struct {
	OTP string `json:"otp"`
}

// AccountView is the minimal account shape returned by the verification routes.
type AccountView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

// ProfileView is returned on login and carries everything except secrets.
type ProfileView struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Verified      bool    `json:"verified"`
	Username      string  `json:"username,omitempty"`
	FirstName     string  `json:"firstname,omitempty"`
	LastName      string  `json:"lastname,omitempty"`
	PhoneNumber   *string `json:"phoneNumber,omitempty"`
	PhoneVerified bool    `json:"phoneVerified"`
	ReferralCode  string  `json:"referralCode,omitempty"`
}

// PersonalInfoView is the personal-info subset of a user.
type PersonalInfoView struct {
	Username      string  `json:"username,omitempty"`
	FirstName     string  `json:"firstname,omitempty"`
	LastName      string  `json:"lastname,omitempty"`
	DOB           string  `json:"dob,omitempty"`
	PhoneNumber   *string `json:"phoneNumber,omitempty"`
	PhoneVerified bool    `json:"phoneVerified"`
}

// ChallengeEnvelope answers routes that issued a code.
type ChallengeEnvelope struct {
	Message string       `json:"message"`
	User    *AccountView `json:"user,omitempty"`
	Debug   *DebugInfo   `json:"debug,omitempty"`
}

// VerifyEnvelope answers a verification attempt.
type VerifyEnvelope struct {
	Message     string       `json:"message"`
	User        *AccountView `json:"user,omitempty"`
	PhoneNumber *string      `json:"phoneNumber,omitempty"`
	Token       string       `json:"token,omitempty"`
}

// LoginEnvelope answers a login attempt, including the unverified case.
type LoginEnvelope struct {
	Message              string       `json:"message,omitempty"`
	Error                string       `json:"error,omitempty"`
	RequiresVerification bool         `json:"requiresVerification,omitempty"`
	Email                string       `json:"email,omitempty"`
	User                 *ProfileView `json:"user,omitempty"`
	Token                string       `json:"token,omitempty"`
}

// SavedInfoView echoes the fields a personal-info save wrote.
type SavedInfoView struct {
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	DOB       string `json:"dob,omitempty"`
}

// PersonalInfoEnvelope answers a personal-info save.
type PersonalInfoEnvelope struct {
	Message string         `json:"message"`
	User    *SavedInfoView `json:"user"`
}

func toAccountView(u *domain.User) *AccountView {
	return &AccountView{ID: u.UserID, Email: u.Email, Verified: u.EmailVerified}
}

func toProfileView(u *domain.User) *ProfileView {
	return &ProfileView{
		ID:            u.UserID,
		Email:         u.Email,
		Verified:      u.EmailVerified,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		PhoneNumber:   u.PhoneNumber,
		PhoneVerified: u.PhoneVerified,
		ReferralCode:  u.ReferralCode,
	}
}

func toPersonalInfoView(u *domain.User) *PersonalInfoView {
	return &PersonalInfoView{
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		DOB:           u.DOB,
		PhoneNumber:   u.PhoneNumber,
		PhoneVerified: u.PhoneVerified,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
