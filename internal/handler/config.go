package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/store"
)

const settingHeaderConfig = "header_config"

// HeaderConfig is the site chrome the public gallery renders: avatar,
// title, contact images, and per-category subtitles.
type HeaderConfig struct {
	AvatarURL         string            `json:"avatarUrl"`
	Title             string            `json:"title"`
	ContactImageURL   string            `json:"contactImageUrl"`
	CooperateImageURL string            `json:"cooperateImageUrl"`
	CategorySubtitles map[string]string `json:"categorySubtitles"`
}

type headerConfigResponse struct {
	Success bool         `json:"success"`
	Config  HeaderConfig `json:"config"`
}

// ConfigHandler serves the header configuration blob.
type ConfigHandler struct {
	store *store.Store
}

func NewConfigHandler(st *store.Store) *ConfigHandler {
	return &ConfigHandler{store: st}
}

// GetHeader returns the stored header config, or zero values when none has
// been saved yet.
func (h *ConfigHandler) GetHeader(w http.ResponseWriter, r *http.Request) {
	cfg := HeaderConfig{CategorySubtitles: map[string]string{}}

	raw, err := h.store.GetSetting(r.Context(), settingHeaderConfig)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondStoreError(w, err)
		return
	}
	if err == nil {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			respondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}
	writeJSON(w, http.StatusOK, headerConfigResponse{Success: true, Config: cfg})
}

// SetHeader replaces the header config.
func (h *ConfigHandler) SetHeader(w http.ResponseWriter, r *http.Request) {
	var cfg HeaderConfig
	if err := readJSON(r, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := h.store.SetSetting(r.Context(), settingHeaderConfig, string(raw)); err != nil {
		respondStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Response{Success: true})
}
