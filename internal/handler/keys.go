package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/service"
	"github.com/curiohq/curio/internal/store"
)

// KeyHandler serves access key redemption and the admin-side key registry.
type KeyHandler struct {
	auth  *service.AuthService
	store *store.Store
}

func NewKeyHandler(auth *service.AuthService, st *store.Store) *KeyHandler {
	return &KeyHandler{auth: auth, store: st}
}

type verifyKeyRequest struct {
	Code string `json:"code"`
}

type verifyKeyResponse struct {
	Success bool          `json:"success"`
	Token   string        `json:"token"`
	KeyInfo model.KeyInfo `json:"keyInfo"`
}

// VerifyKey redeems an access key code for a starlight token. The 403 is
// reserved for the single-device conflict; bad or expired codes are 401.
func (h *KeyHandler) VerifyKey(w http.ResponseWriter, r *http.Request) {
	var req verifyKeyRequest
	if err := readJSON(r, &req); err != nil || req.Code == "" {
		respondError(w, http.StatusBadRequest, "Access key required")
		return
	}

	token, key, err := h.auth.RedeemAccessKey(r.Context(), req.Code, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "Invalid access key")
		case errors.Is(err, service.ErrKeyExpired):
			respondError(w, http.StatusUnauthorized, "Access key expired")
		case errors.Is(err, service.ErrKeyInUse):
			respondError(w, http.StatusForbidden, "Access key already in use on another device")
		default:
			respondStoreError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, verifyKeyResponse{
		Success: true,
		Token:   token.Value,
		KeyInfo: key.Info(),
	})
}

type listKeysResponse struct {
	Success bool              `json:"success"`
	Keys    []model.AccessKey `json:"keys"`
}

// List returns all live keys, sweeping expired ones first.
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAccessKeys(r.Context(), timeNow())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if keys == nil {
		keys = []model.AccessKey{}
	}
	writeJSON(w, http.StatusOK, listKeysResponse{Success: true, Keys: keys})
}

type generateKeyRequest struct {
	DurationInDays int    `json:"durationInDays"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	UserType       string `json:"userType"`
	Percentage     *int   `json:"percentage"`
}

type keyResponse struct {
	Success bool            `json:"success"`
	Key     model.AccessKey `json:"key"`
}

// Generate mints a new access key. Percentage defaults to 100 when omitted.
func (h *KeyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateKeyRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	percentage := 100
	if req.Percentage != nil {
		percentage = *req.Percentage
	}

	key, err := h.auth.GenerateAccessKey(r.Context(), req.Username, req.Name, req.UserType, percentage, req.DurationInDays)
	if err != nil {
		if errors.Is(err, store.ErrBusy) {
			respondStoreError(w, err)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{Success: true, Key: *key})
}

// Delete revokes a key and every token minted from it.
func (h *KeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.auth.DeleteAccessKey(r.Context(), code); err != nil {
		respondStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Response{Success: true})
}

type renameKeyRequest struct {
	Name string `json:"name"`
}

// Rename updates a key's display name. Tokens minted from the key are
// untouched.
func (h *KeyHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameKeyRequest
	if err := readJSON(r, &req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "Name required")
		return
	}
	key, err := h.store.RenameAccessKey(r.Context(), chi.URLParam(r, "code"), req.Name)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{Success: true, Key: *key})
}
