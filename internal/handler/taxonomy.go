package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/server/middleware"
	"github.com/curiohq/curio/internal/service"
	"github.com/curiohq/curio/internal/store"
)

// TaxonomyHandler serves the per-category filter lists and tag dictionary.
type TaxonomyHandler struct {
	store     *store.Store
	policy    *service.Policy
	resources *ResourceHandler
}

func NewTaxonomyHandler(st *store.Store, policy *service.Policy, resources *ResourceHandler) *TaxonomyHandler {
	return &TaxonomyHandler{store: st, policy: policy, resources: resources}
}

type filtersResponse struct {
	Success bool           `json:"success"`
	Filters []model.Filter `json:"filters"`
}

// GetFilters returns a category's filter list. Admin-only categories hide
// their filters from non-admins the same way they hide resources.
func (h *TaxonomyHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if h.policy.Compute(category, middleware.GetPrivilege(r.Context())).Forbidden {
		writeJSON(w, http.StatusForbidden, model.EmptyCategoryPayload("Access denied"))
		return
	}

	filters, err := h.store.FiltersByCategory(r.Context(), category)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filtersResponse{Success: true, Filters: filters})
}

type taxonomyEntryRequest struct {
	Category  string `json:"category"`
	Label     string `json:"label"`
	Tag       string `json:"tag"`
	SortOrder int    `json:"sortOrder"`
}

func (req *taxonomyEntryRequest) valid() bool {
	return req.Category != "" && req.Label != "" && req.Tag != ""
}

// UpsertFilter adds or updates one filter entry.
func (h *TaxonomyHandler) UpsertFilter(w http.ResponseWriter, r *http.Request) {
	var req taxonomyEntryRequest
	if err := readJSON(r, &req); err != nil || !req.valid() {
		respondError(w, http.StatusBadRequest, "category, label, and tag are required")
		return
	}
	if err := h.store.UpsertFilter(r.Context(), req.Category, req.Label, req.Tag, req.SortOrder); err != nil {
		respondStoreError(w, err)
		return
	}
	h.resources.InvalidateCategory(req.Category)
	writeJSON(w, http.StatusOK, model.Response{Success: true})
}

// DeleteFilter removes one filter entry by (category, tag).
func (h *TaxonomyHandler) DeleteFilter(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if err := h.store.DeleteFilter(r.Context(), category, chi.URLParam(r, "tag")); err != nil {
		respondStoreError(w, err)
		return
	}
	h.resources.InvalidateCategory(category)
	writeJSON(w, http.StatusOK, model.Response{Success: true})
}

// UpsertTagEntry adds or updates one tag dictionary entry.
func (h *TaxonomyHandler) UpsertTagEntry(w http.ResponseWriter, r *http.Request) {
	var req taxonomyEntryRequest
	if err := readJSON(r, &req); err != nil || !req.valid() {
		respondError(w, http.StatusBadRequest, "category, label, and tag are required")
		return
	}
	if err := h.store.UpsertTagEntry(r.Context(), req.Category, req.Label, req.Tag, req.SortOrder); err != nil {
		respondStoreError(w, err)
		return
	}
	h.resources.InvalidateCategory(req.Category)
	writeJSON(w, http.StatusOK, model.Response{Success: true})
}

// DeleteTagEntry removes one tag dictionary entry by (category, tag).
func (h *TaxonomyHandler) DeleteTagEntry(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if err := h.store.DeleteTagEntry(r.Context(), category, chi.URLParam(r, "tag")); err != nil {
		respondStoreError(w, err)
		return
	}
	h.resources.InvalidateCategory(category)
	writeJSON(w, http.StatusOK, model.Response{Success: true})
}
