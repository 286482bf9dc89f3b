package handlers

import (
	"net/http"

	"cityfix/core/accounts"
	"cityfix/core/utils"
)

type AdminHandler struct {
	accounts *accounts.Service
	logger   *utils.Logger
}

func NewAdminHandler(accountsSvc *accounts.Service, logger *utils.Logger) *AdminHandler {
	return &AdminHandler{accounts: accountsSvc, logger: logger}
}

type companyPayload struct {
	Name           string   `json:"name" validate:"required,max=200"`
	Categories     []string `json:"categories" validate:"required,min=1,dive,required"`
	PlatformAccess bool     `json:"platform_access"`
}

type createUserPayload struct {
	Username  string `json:"username" validate:"required,min=3,max=64"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FullName  string `json:"full_name" validate:"max=128"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	Role      string `json:"role" validate:"required"`
	CompanyID *int64 `json:"company_id" validate:"omitempty,gt=0"`
}

func (h *AdminHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	items, err := h.accounts.ListCompanies(r.Context(), actor)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": items})
}

func (h *AdminHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var payload companyPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	company, err := h.accounts.CreateCompany(r.Context(), actor, accounts.CompanyInput{
		Name:           payload.Name,
		Categories:     payload.Categories,
		PlatformAccess: payload.PlatformAccess,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, company)
}

func (h *AdminHandler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var payload companyPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	company, err := h.accounts.UpdateCompany(r.Context(), actor, id, accounts.CompanyInput{
		Name:           payload.Name,
		Categories:     payload.Categories,
		PlatformAccess: payload.PlatformAccess,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var payload createUserPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	user, err := h.accounts.CreateUser(r.Context(), actor, accounts.UserInput{
		Username:  payload.Username,
		Password:  payload.Password,
		FullName:  payload.FullName,
		Email:     payload.Email,
		Role:      payload.Role,
		CompanyID: payload.CompanyID,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}
