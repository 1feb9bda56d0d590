package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zabira-api/internal/application/otp"
	"github.com/zabira-api/internal/domain"
)

func TestPhoneSend_DefaultsToWhatsApp(t *testing.T) {
	o := new(mockOTP)
	o.On("IssuePhoneOTP", mock.Anything, "a@b.co", "+15550001", domain.MethodWhatsApp).
		Return(&domain.Challenge{Code: "123456", SubjectKey: "+15550001", Method: domain.MethodWhatsApp}, nil)

	h := NewPhoneHandler(o, Options{Debug: true})
	rr := httptest.NewRecorder()
	h.Send(rr, jsonReq(t, http.MethodPost, "/profile/phone", map[string]string{"email": "a@b.co", "phoneNumber": "+15550001"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "OTP sent to +15550001 via whatsapp", body["message"])
	assert.Equal(t, map[string]interface{}{"otp": "123456"}, body["debug"])
	o.AssertExpectations(t)
}

func TestPhoneSend_Validation(t *testing.T) {
	cases := []struct {
		name string
		body map[string]string
		want string
	}{
		{"no phone", map[string]string{"email": "a@b.co"}, "Email and phone number are required"},
		{"no email", map[string]string{"phoneNumber": "+15550001"}, "Email and phone number are required"},
		{"bad method", map[string]string{"email": "a@b.co", "phoneNumber": "+15550001", "method": "pigeon"}, "Method must be sms or whatsapp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := new(mockOTP)
			h := NewPhoneHandler(o, Options{})
			rr := httptest.NewRecorder()
			h.Send(rr, jsonReq(t, http.MethodPost, "/profile/phone", tc.body))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.want, decodeBody(t, rr)["error"])
			o.AssertNotCalled(t, "IssuePhoneOTP")
		})
	}
}

func TestPhoneSend_UsesSessionEmail(t *testing.T) {
	o := new(mockOTP)
	o.On("IssuePhoneOTP", mock.Anything, "ada@example.com", "+15550001", domain.MethodSMS).
		Return(&domain.Challenge{SubjectKey: "+15550001", Method: domain.MethodSMS}, nil)

	h := NewPhoneHandler(o, Options{})
	r := jsonReq(t, http.MethodPost, "/profile/phone", map[string]string{"phoneNumber": "+15550001", "method": "sms"})
	rr := serveWithSession(t, h.Send, r, "ada@example.com")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OTP sent to +15550001 via sms", decodeBody(t, rr)["message"])
}

func TestPhoneSend_SessionMismatch(t *testing.T) {
	o := new(mockOTP)
	h := NewPhoneHandler(o, Options{})
	r := jsonReq(t, http.MethodPost, "/profile/phone", map[string]string{"email": "eve@example.com", "phoneNumber": "+15550001"})
	rr := serveWithSession(t, h.Send, r, "ada@example.com")

	assert.Equal(t, http.StatusForbidden, rr.Code)
	o.AssertNotCalled(t, "IssuePhoneOTP")
}

func TestPhoneVerify_Success(t *testing.T) {
	o := new(mockOTP)
	o.On("VerifyPhoneOTP", mock.Anything, "a@b.co", "123456").Return(&otp.VerifyResult{User: testUser()}, nil)

	h := NewPhoneHandler(o, Options{})
	rr := httptest.NewRecorder()
	h.Verify(rr, jsonReq(t, http.MethodPut, "/profile/phone", map[string]string{"email": "a@b.co", "otp": "123456"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]interface{}{
		"message":     "Phone number verified successfully",
		"phoneNumber": "+2348012345678",
	}, decodeBody(t, rr))
}

func TestPhoneVerify_AlreadyVerified(t *testing.T) {
	o := new(mockOTP)
	o.On("VerifyPhoneOTP", mock.Anything, mock.Anything, mock.Anything).
		Return(&otp.VerifyResult{User: testUser(), AlreadyVerified: true}, nil)

	h := NewPhoneHandler(o, Options{})
	rr := httptest.NewRecorder()
	h.Verify(rr, jsonReq(t, http.MethodPut, "/profile/phone", map[string]string{"email": "a@b.co", "otp": "123456"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]interface{}{"message": "Phone already verified"}, decodeBody(t, rr))
}

func TestPhoneVerify_Expired(t *testing.T) {
	o := new(mockOTP)
	o.On("VerifyPhoneOTP", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.Errorf(domain.ErrExpired, "OTP has expired. Please request a new one."))

	h := NewPhoneHandler(o, Options{})
	rr := httptest.NewRecorder()
	h.Verify(rr, jsonReq(t, http.MethodPut, "/profile/phone", map[string]string{"email": "a@b.co", "otp": "123456"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "OTP has expired. Please request a new one.", decodeBody(t, rr)["error"])
}

func TestPhoneResend(t *testing.T) {
	o := new(mockOTP)
	o.On("ResendPhoneOTP", mock.Anything, "a@b.co", domain.MethodSMS).
		Return(&domain.Challenge{SubjectKey: "+15550001", Method: domain.MethodSMS}, nil)

	h := NewPhoneHandler(o, Options{})
	rr := httptest.NewRecorder()
	h.Resend(rr, httptest.NewRequest(http.MethodGet, "/profile/phone?email=a@b.co&method=sms", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "New OTP sent to +15550001 via sms", body["message"])
	assert.NotContains(t, body, "debug")
}

func TestPhoneResend_AlreadyVerified(t *testing.T) {
	o := new(mockOTP)
	o.On("ResendPhoneOTP", mock.Anything, mock.Anything, domain.MethodWhatsApp).
		Return(nil, domain.Errorf(domain.ErrAlreadyVerified, "Phone already verified"))

	h := NewPhoneHandler(o, Options{})
	rr := httptest.NewRecorder()
	h.Resend(rr, httptest.NewRequest(http.MethodGet, "/profile/phone?email=a@b.co", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Phone already verified", decodeBody(t, rr)["message"])
}

func TestPhoneResend_NoPhoneOnFile(t *testing.T) {
	o := new(mockOTP)
	o.On("ResendPhoneOTP", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.Errorf(domain.ErrBadRequest, "No phone number on file"))

	h := NewPhoneHandler(o, Options{})
	rr := httptest.NewRecorder()
	h.Resend(rr, httptest.NewRequest(http.MethodGet, "/profile/phone?email=a@b.co", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "No phone number on file", decodeBody(t, rr)["error"])
}

func TestPhoneResend_MissingEmail(t *testing.T) {
	h := NewPhoneHandler(new(mockOTP), Options{})
	rr := httptest.NewRecorder()
	h.Resend(rr, httptest.NewRequest(http.MethodGet, "/profile/phone", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Email is required", decodeBody(t, rr)["error"])
}

func TestPhoneResend_UnknownMethod(t *testing.T) {
	o := new(mockOTP)
	h := NewPhoneHandler(o, Options{})
	rr := httptest.NewRecorder()
	h.Resend(rr, httptest.NewRequest(http.MethodGet, "/profile/phone?email=a@b.co&method=pigeon", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Method must be sms or whatsapp", decodeBody(t, rr)["error"])
	o.AssertNotCalled(t, "ResendPhoneOTP", mock.Anything, mock.Anything, mock.Anything)
}
