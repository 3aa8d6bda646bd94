package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"arkiva.org/internal/audit"
)

type auditListResponse struct {
	Items []audit.Entry `json:"items"`
	AsOf  time.Time     `json:"as_of"`
}

func (a *API) handleAuditByResource(w http.ResponseWriter, r *http.Request) {
	if a.auditLog == nil {
		writeError(w, r, http.StatusServiceUnavailable, "audit service unavailable")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	resourceType := strings.TrimSpace(q.Get("resource_type"))
	resourceID := strings.TrimSpace(q.Get("resource_id"))
	items, err := a.auditLog.ListByResource(r.Context(), resourceType, resourceID)
	if err != nil {
		handleAuditError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auditListResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) handleOrganizationAudit(w http.ResponseWriter, r *http.Request, orgID string) {
	if a.auditLog == nil {
		writeError(w, r, http.StatusServiceUnavailable, "audit service unavailable")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 0, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.auditLog.ListByOrganization(r.Context(), orgID, limit)
	if err != nil {
		handleAuditError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auditListResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func handleAuditError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, audit.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, audit.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "audit operation failed")
	}
}
