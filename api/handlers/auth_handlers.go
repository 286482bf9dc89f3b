package handlers

import (
	"errors"
	"net/http"

	"cityfix/core/accounts"
	"cityfix/core/auth"
	"cityfix/core/rbac"
	"cityfix/core/roles"
	"cityfix/core/store"
	"cityfix/core/utils"
)

type AuthHandler struct {
	accounts *accounts.Service
	users    store.UsersStore
	policy   *rbac.Policy
	clientIP func(*http.Request) string
	logger   *utils.Logger
}

func NewAuthHandler(accountsSvc *accounts.Service, users store.UsersStore, policy *rbac.Policy, clientIP func(*http.Request) string, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{accounts: accountsSvc, users: users, policy: policy, clientIP: clientIP, logger: logger}
}

type registerPayload struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"max=128"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
}

type loginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userDTO struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	FullName    string   `json:"full_name"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role"`
	Tier        string   `json:"tier"`
	CompanyID   *int64   `json:"company_id,omitempty"`
	Permissions []string `json:"permissions"`
}

func (h *AuthHandler) userDTO(u *store.User) userDTO {
	dto := userDTO{ID: u.ID, Username: u.Username, FullName: u.FullName, Email: u.Email, Role: u.Role, CompanyID: u.CompanyID, Permissions: []string{}}
	if role, err := roles.Parse(u.Role); err == nil {
		dto.Tier = role.Tier().String()
		dto.Permissions = h.policy.Permissions(role.Tier())
	}
	return dto
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	user, err := h.accounts.Register(r.Context(), accounts.UserInput{
		Username: payload.Username,
		Password: payload.Password,
		FullName: payload.FullName,
		Email:    payload.Email,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": h.userDTO(user)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	sess, user, err := h.accounts.Login(r.Context(), auth.Credentials{Username: payload.Username, Password: payload.Password}, h.clientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			if h.logger != nil {
				h.logger.Printf("AUTH fail (credentials) user=%s", payload.Username)
			}
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      sess.ID,
		"token_type": "Bearer",
		"expires_at": sess.ExpiresAt,
		"user":       h.userDTO(user),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFrom(r.Context())
	if err := h.accounts.Logout(r.Context(), sess); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	user, err := h.users.Get(r.Context(), actor.UserID)
	if err != nil || user == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": h.userDTO(user)})
}
