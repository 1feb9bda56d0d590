package handler

import (
	"net/http"

	"github.com/zabira-api/internal/application/account"
	"github.com/zabira-api/internal/domain"
	"go.uber.org/zap"
)

// ProfileHandler serves /profile/personal-info.
type ProfileHandler struct {
	accounts account.Service
	log      *zap.Logger
}

func NewProfileHandler(accounts account.Service, opts Options) *ProfileHandler {
	return &ProfileHandler{accounts: accounts, log: opts.logger()}
}

func (h *ProfileHandler) SavePersonalInfo(w http.ResponseWriter, r *http.Request) {
	var req domain.PersonalInfoRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email, err := resolveEmail(r, req.Email)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	req.Email = email
	u, err := h.accounts.SavePersonalInfo(r.Context(), req)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, PersonalInfoEnvelope{
		Message: "Personal information saved successfully",
		User:    &SavedInfoView{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, DOB: u.DOB},
	})
}

func (h *ProfileHandler) GetPersonalInfo(w http.ResponseWriter, r *http.Request) {
	email, err := resolveEmail(r, r.URL.Query().Get("email"))
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	u, err := h.accounts.GetPersonalInfo(r.Context(), email)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonalInfoView(u))
}
