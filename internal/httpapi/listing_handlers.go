package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"casaro.io/internal/audit"
	"casaro.io/internal/auth"
	"casaro.io/internal/listings"
)

type createListingRequest struct {
	Title      string `json:"title"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
}

type updateListingRequest struct {
	Title      string `json:"title"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PriceCents int64  `json:"price_cents"`
}

func (a *API) handleListingsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listListings(w, r)
	case http.MethodPost:
		a.createListing(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleListingResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/listings/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/status") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/status"), "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "listing not found")
			return
		}
		a.transitionListing(w, r, id)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getListing(w, r, path)
	case http.MethodPatch:
		a.updateListing(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) listListings(w http.ResponseWriter, r *http.Request) {
	if err := a.requirePermission(r.Context(), auth.PermReadProperties); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	f := listings.Filter{
		Status:  listings.Status(r.URL.Query().Get("status")),
		AgentID: r.URL.Query().Get("agent_id"),
		City:    r.URL.Query().Get("city"),
	}
	items, err := a.catalog.List(r.Context(), f)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getListing(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.requirePermission(r.Context(), auth.PermReadProperties); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	item, err := a.catalog.Get(r.Context(), id)
	if err != nil {
		handleListingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) createListing(w http.ResponseWriter, r *http.Request) {
	if err := a.requirePermission(r.Context(), auth.PermManageListings); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())

	var req createListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.catalog.Create(r.Context(), listings.Listing{
		Title:      req.Title,
		Address:    req.Address,
		City:       req.City,
		PriceCents: req.PriceCents,
		Currency:   strings.ToUpper(strings.TrimSpace(req.Currency)),
		AgentID:    id.ID,
	})
	if err != nil {
		handleListingError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "listings.create", map[string]any{"listing_id": item.ID})
	w.Header().Set("Location", "/v1/listings/"+item.ID)
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) updateListing(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.requirePermission(r.Context(), auth.PermManageListings); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	var req updateListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.catalog.UpdateDetails(r.Context(), id, req.Title, req.Address, req.City, req.PriceCents)
	if err != nil {
		handleListingError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "listings.update", map[string]any{"listing_id": id})
	writeJSON(w, http.StatusOK, item)
}

func (a *API) transitionListing(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermManageListings); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.catalog.Transition(r.Context(), id, listings.Status(req.Status))
	if err != nil {
		handleListingError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "listings.status.change", map[string]any{
		"listing_id": id,
		"status":     req.Status,
	})
	writeJSON(w, http.StatusOK, item)
}

func handleListingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, listings.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, listings.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, listings.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "listing not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
