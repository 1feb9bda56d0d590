package handler

import (
	"net/http"

	"github.com/zabira-api/internal/domain"
	"github.com/zabira-api/internal/pkg/validate"
	"github.com/zabira-api/internal/transport/http/middleware"
)

// resolveEmail returns the email a profile request acts on. Without a session
// the supplied email is used as-is. With one, an omitted email falls back to
// the session's and a different email is refused.
func resolveEmail(r *http.Request, supplied string) (string, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return supplied, nil
	}
	if supplied == "" {
		return claims.Email, nil
	}
	if validate.NormalizeEmail(supplied) != validate.NormalizeEmail(claims.Email) {
		return "", domain.Errorf(domain.ErrForbidden, "Email does not match the signed-in account")
	}
	return supplied, nil
}
