package domain

import (
	"fmt"
	"time"
)

// Storage attribute names. The JSON, Postgres and DynamoDB adapters all use
// these as column/attribute names so a partial update map is portable.
const (
	FieldUserID         = "user_id"
	FieldEmail          = "email"
	FieldPasswordHash   = "password_hash"
	FieldReferralCode   = "referral_code"
	FieldEmailVerified  = "email_verified"
	FieldEmailOTP       = "email_otp"
	FieldEmailOTPExpiry = "email_otp_expiry"
	FieldPhoneNumber    = "phone_number"
	FieldPhoneVerified  = "phone_verified"
	FieldPhoneOTP       = "phone_otp"
	FieldPhoneOTPExpiry = "phone_otp_expiry"
	FieldUsername       = "username"
	FieldFirstName      = "first_name"
	FieldLastName       = "last_name"
	FieldDOB            = "dob"
	FieldCreatedAt      = "created_at"
	FieldUpdatedAt      = "updated_at"
)

type User struct {
	UserID         string     `json:"id" dynamodbav:"user_id"`
	Email          string     `json:"email" dynamodbav:"email"`
	PasswordHash   string     `json:"password_hash" dynamodbav:"password_hash"`
	ReferralCode   string     `json:"referral_code,omitempty" dynamodbav:"referral_code"`
	EmailVerified  bool       `json:"email_verified" dynamodbav:"email_verified"`
	EmailOTP       string     `json:"email_otp,omitempty" dynamodbav:"email_otp"`
	EmailOTPExpiry *time.Time `json:"email_otp_expiry,omitempty" dynamodbav:"email_otp_expiry"`
	PhoneNumber    *string    `json:"phone_number,omitempty" dynamodbav:"phone_number"`
	PhoneVerified  bool       `json:"phone_verified" dynamodbav:"phone_verified"`
	PhoneOTP       string     `json:"phone_otp,omitempty" dynamodbav:"phone_otp"`
	PhoneOTPExpiry *time.Time `json:"phone_otp_expiry,omitempty" dynamodbav:"phone_otp_expiry"`
	Username       string     `json:"username,omitempty" dynamodbav:"username"`
	FirstName      string     `json:"first_name,omitempty" dynamodbav:"first_name"`
	LastName       string     `json:"last_name,omitempty" dynamodbav:"last_name"`
	DOB            string     `json:"dob,omitempty" dynamodbav:"dob"` // YYYY-MM-DD
	CreatedAt      time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

type SignupRequest struct {
	Email        string `json:"email" validate:"required"`
	Password     string `json:"password" validate:"required,min=8,max=72,strongpassword"`
	ReferralCode string `json:"referralCode"`
	AgreeToTerms bool   `json:"agreeToTerms"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type PersonalInfoRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username" validate:"required,alphanum_mix"`
	FirstName string `json:"firstname" validate:"required"`
	LastName  string `json:"lastname" validate:"required"`
	DOB       string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
}

// Clone returns a deep copy so stores can hand out records without sharing pointers.
func (u *User) Clone() *User {
	c := *u
	if u.EmailOTPExpiry != nil {
		t := *u.EmailOTPExpiry
		c.EmailOTPExpiry = &t
	}
	if u.PhoneOTPExpiry != nil {
		t := *u.PhoneOTPExpiry
		c.PhoneOTPExpiry = &t
	}
	if u.PhoneNumber != nil {
		p := *u.PhoneNumber
		c.PhoneNumber = &p
	}
	return &c
}

// Apply sets the fields named in updates. Keys are Field* constants; a nil
// value clears a nullable field.
func (u *User) Apply(updates map[string]interface{}) error {
	for k, val := range updates {
		var err error
		switch k {
		case FieldEmail:
			u.Email, err = asString(k, val)
		case FieldPasswordHash:
			u.PasswordHash, err = asString(k, val)
		case FieldReferralCode:
			u.ReferralCode, err = asString(k, val)
		case FieldEmailVerified:
			u.EmailVerified, err = asBool(k, val)
		case FieldEmailOTP:
			u.EmailOTP, err = asString(k, val)
		case FieldEmailOTPExpiry:
			u.EmailOTPExpiry, err = asTimePtr(k, val)
		case FieldPhoneNumber:
			if val == nil {
				u.PhoneNumber = nil
				continue
			}
			var p string
			p, err = asString(k, val)
			u.PhoneNumber = &p
		case FieldPhoneVerified:
			u.PhoneVerified, err = asBool(k, val)
		case FieldPhoneOTP:
			u.PhoneOTP, err = asString(k, val)
		case FieldPhoneOTPExpiry:
			u.PhoneOTPExpiry, err = asTimePtr(k, val)
		case FieldUsername:
			u.Username, err = asString(k, val)
		case FieldFirstName:
			u.FirstName, err = asString(k, val)
		case FieldLastName:
			u.LastName, err = asString(k, val)
		case FieldDOB:
			u.DOB, err = asString(k, val)
		case FieldUpdatedAt:
			var t *time.Time
			if t, err = asTimePtr(k, val); err == nil && t != nil {
				u.UpdatedAt = *t
			}
		default:
			return fmt.Errorf("unknown user field %q", k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func asString(k string, v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: want string, got %T", k, v)
	}
	return s, nil
}

func asBool(k string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("field %q: want bool, got %T", k, v)
	}
	return b, nil
}

func asTimePtr(k string, v interface{}) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &t, nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		c := *t
		return &c, nil
	}
	return nil, fmt.Errorf("field %q: want time, got %T", k, v)
}
