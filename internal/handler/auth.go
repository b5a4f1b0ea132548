package handler

import (
	"errors"
	"net/http"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/server/middleware"
	"github.com/curiohq/curio/internal/service"
)

// AuthHandler serves password login, token verification, logout, and
// password maintenance.
type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// Login exchanges the admin password for a non-expiring admin token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Password required")
		return
	}

	token, err := h.auth.IssueAdminToken(r.Context(), req.Password, clientIP(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Invalid password")
			return
		}
		respondStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token.Value})
}

type verifyResponse struct {
	Success bool           `json:"success"`
	KeyInfo *model.KeyInfo `json:"keyInfo,omitempty"`
}

// VerifyToken reports whether the bearer token is live. For a starlight
// token the response carries a fresh snapshot of its source key, so
// percentage changes are visible to the holder on re-verify.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.auth.Verify(r.Context(), middleware.BearerToken(r))
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalid) {
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		respondStoreError(w, err)
		return
	}

	resp := verifyResponse{Success: true}
	if token.Kind == model.TokenKindStarlight {
		priv, err := h.auth.ResolvePrivilege(r.Context(), token.Value)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if priv.Key == nil {
			// Key vanished between the two reads; the session is dead.
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		info := priv.Key.Info()
		resp.KeyInfo = &info
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the presented token. Idempotent; an unknown token still
// gets a success response.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Revoke(r.Context(), middleware.BearerToken(r)); err != nil {
		respondStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Response{Success: true})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UpdatePassword rotates the admin password after re-verifying the current
// one.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := readJSON(r, &req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "Current and new password required")
		return
	}

	if err := h.auth.SetAdminPassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Current password incorrect")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.Response{Success: true, Message: "Password updated"})
}

type hashRequest struct {
	Password string `json:"password"`
}

type hashResponse struct {
	Success bool   `json:"success"`
	Hash    string `json:"hash"`
}

// GeneratePasswordHash returns the bcrypt hash of a password so operators
// can set CURIO_ADMIN_PASSWORD_HASH out of band.
func (h *AuthHandler) GeneratePasswordHash(w http.ResponseWriter, r *http.Request) {
	var req hashRequest
	if err := readJSON(r, &req); err != nil || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Password required")
		return
	}
	hash, err := service.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, hashResponse{Success: true, Hash: hash})
}
