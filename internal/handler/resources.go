package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jellydator/ttlcache/v3"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/server/middleware"
	"github.com/curiohq/curio/internal/service"
	"github.com/curiohq/curio/internal/store"
)

// categoryCacheTTL bounds staleness of public category reads. Short enough
// that an admin edit shows up within half a minute.
const categoryCacheTTL = 30 * time.Second

// categoryData is the full, untruncated payload cached per category.
// Truncation is per-caller and always happens after the cache read.
type categoryData struct {
	Filters       []model.Filter
	TagDictionary []model.Filter
	Resources     []model.Resource
}

// ResourceHandler serves category reads with tier-based visibility and the
// admin-side resource CRUD.
type ResourceHandler struct {
	store  *store.Store
	policy *service.Policy
	cache  *ttlcache.Cache[string, categoryData]
}

func NewResourceHandler(st *store.Store, policy *service.Policy) *ResourceHandler {
	cache := ttlcache.New[string, categoryData](
		ttlcache.WithTTL[string, categoryData](categoryCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, categoryData](),
	)
	go cache.Start()
	return &ResourceHandler{store: st, policy: policy, cache: cache}
}

func (h *ResourceHandler) loadCategory(r *http.Request, category string) (categoryData, error) {
	// Admin-only categories bypass the cache so a 403 decision never races
	// a cached fill and gated content never sits in shared memory.
	if !h.policy.AdminOnly(category) {
		if item := h.cache.Get(category); item != nil {
			return item.Value(), nil
		}
	}

	resources, err := h.store.ListResourcesByCategory(r.Context(), category)
	if err != nil {
		return categoryData{}, err
	}
	filters, err := h.store.FiltersByCategory(r.Context(), category)
	if err != nil {
		return categoryData{}, err
	}
	tags, err := h.store.TagEntriesByCategory(r.Context(), category)
	if err != nil {
		return categoryData{}, err
	}

	data := categoryData{Filters: filters, TagDictionary: tags, Resources: resources}
	if !h.policy.AdminOnly(category) {
		h.cache.Set(category, data, ttlcache.DefaultTTL)
	}
	return data, nil
}

// GetCategory returns one category's filters, tag dictionary, and resources,
// with the resource list truncated to the caller's disclosure prefix. A
// forbidden read gets 403 and the empty payload shape.
func (h *ResourceHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	priv := middleware.GetPrivilege(r.Context())

	decision := h.policy.Compute(category, priv)
	if decision.Forbidden {
		writeJSON(w, http.StatusForbidden, model.EmptyCategoryPayload("Access denied"))
		return
	}

	data, err := h.loadCategory(r, category)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	resources := data.Resources
	if n := service.PrefixCount(len(resources), decision.Percentage); n < len(resources) {
		resources = resources[:n]
	}
	if resources == nil {
		resources = []model.Resource{}
	}

	writeJSON(w, http.StatusOK, model.CategoryPayload{
		Success:       true,
		Filters:       data.Filters,
		TagDictionary: data.TagDictionary,
		Resources:     resources,
	})
}

type allResourcesResponse struct {
	Success   bool             `json:"success"`
	Resources []model.Resource `json:"resources"`
}

// ListAll returns every resource the caller may see: admin-only categories
// are dropped for non-admins and percentage-controlled ones are truncated
// per category.
func (h *ResourceHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	priv := middleware.GetPrivilege(r.Context())

	all, err := h.store.ListAllResources(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}

	// Group by category so each partition's rule applies independently.
	byCategory := make(map[string][]model.Resource)
	var order []string
	for _, res := range all {
		if _, seen := byCategory[res.Category]; !seen {
			order = append(order, res.Category)
		}
		byCategory[res.Category] = append(byCategory[res.Category], res)
	}

	visible := []model.Resource{}
	for _, category := range order {
		decision := h.policy.Compute(category, priv)
		if decision.Forbidden {
			continue
		}
		items := byCategory[category]
		if n := service.PrefixCount(len(items), decision.Percentage); n < len(items) {
			items = items[:n]
		}
		visible = append(visible, items...)
	}

	writeJSON(w, http.StatusOK, allResourcesResponse{Success: true, Resources: visible})
}

// Upsert creates or updates one resource and invalidates its category's
// cache entry.
func (h *ResourceHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var res model.Resource
	if err := readJSON(r, &res); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if res.ID == "" || res.Title == "" || res.Category == "" {
		respondError(w, http.StatusBadRequest, "id, title, and category are required")
		return
	}

	if err := h.store.UpsertResource(r.Context(), &res); err != nil {
		respondStoreError(w, err)
		return
	}
	h.cache.Delete(res.Category)
	writeJSON(w, http.StatusOK, model.Response{Success: true})
}

type batchRequest struct {
	Resources []model.Resource `json:"resources"`
}

type batchResponse struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Message  string `json:"message,omitempty"`
}

// Batch upserts a set of resources in one transaction.
func (h *ResourceHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := readJSON(r, &req); err != nil || len(req.Resources) == 0 {
		respondError(w, http.StatusBadRequest, "resources array required")
		return
	}
	for _, res := range req.Resources {
		if res.ID == "" || res.Title == "" || res.Category == "" {
			respondError(w, http.StatusBadRequest, "every resource needs id, title, and category")
			return
		}
	}

	if err := h.store.UpsertResources(r.Context(), req.Resources); err != nil {
		respondStoreError(w, err)
		return
	}
	for _, res := range req.Resources {
		h.cache.Delete(res.Category)
	}
	writeJSON(w, http.StatusOK, batchResponse{Success: true, Imported: len(req.Resources)})
}

// Delete removes one resource by ID.
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.store.GetResource(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if err := h.store.DeleteResource(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	h.cache.Delete(res.Category)
	writeJSON(w, http.StatusOK, model.Response{Success: true})
}

// InvalidateCategory drops a category's cache entry. Exposed for the
// taxonomy handler, which shares the cached payload.
func (h *ResourceHandler) InvalidateCategory(category string) {
	h.cache.Delete(category)
}
