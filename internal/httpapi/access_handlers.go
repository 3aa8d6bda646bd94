package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"arkiva.org/internal/access"
)

type replaceMatrixRequest struct {
	Entries []access.MatrixInput `json:"entries"`
}

type replaceMatrixResponse struct {
	Count int `json:"count"`
}

type toggleRequest struct {
	AccessKey string `json:"access_key"`
	RoleKey   string `json:"role_key"`
}

type matrixListResponse struct {
	Items []access.MatrixEntry `json:"items"`
}

type habilitationListResponse struct {
	Items []access.Habilitation `json:"items"`
}

type addHabilitationRequest struct {
	MemberID     string     `json:"member_id"`
	MemberName   string     `json:"member_name"`
	AccessKey    string     `json:"access_key"`
	AccessCellID string     `json:"access_cell_id"`
	Type         string     `json:"type"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

func (a *API) handleOrganizationScoped(w http.ResponseWriter, r *http.Request) {
	if a.access == nil {
		writeError(w, r, http.StatusServiceUnavailable, "access service unavailable")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/organizations/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	orgID := parts[0]
	switch {
	case len(parts) == 2 && parts[1] == "matrix":
		a.handleMatrix(w, r, orgID)
	case len(parts) == 3 && parts[1] == "matrix" && parts[2] == "toggle":
		a.handleMatrixToggle(w, r, orgID)
	case len(parts) == 2 && parts[1] == "habilitations":
		a.handleHabilitations(w, r, orgID)
	case len(parts) == 3 && parts[1] == "access" && parts[2] == "resolve":
		a.handleAccessResolve(w, r, orgID)
	case len(parts) == 2 && parts[1] == "audit":
		a.handleOrganizationAudit(w, r, orgID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleMatrix(w http.ResponseWriter, r *http.Request, orgID string) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.access.ListMatrix(r.Context(), orgID)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, matrixListResponse{Items: items})
	case http.MethodPut:
		if !a.ensureRole(w, r, roleAdmin) {
			return
		}
		var req replaceMatrixRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		count, err := a.access.ReplaceMatrix(r.Context(), orgID, req.Entries)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, replaceMatrixResponse{Count: count})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleMatrixToggle(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureRole(w, r, roleAdmin) {
		return
	}
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.access.Toggle(r.Context(), orgID, req.AccessKey, req.RoleKey)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleHabilitations(w http.ResponseWriter, r *http.Request, orgID string) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.access.ListHabilitations(r.Context(), orgID)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, habilitationListResponse{Items: items})
	case http.MethodPost:
		if !a.ensureRole(w, r, roleAdmin) {
			return
		}
		var req addHabilitationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		h, err := a.access.AddHabilitation(r.Context(), access.HabilitationInput{
			OrganizationID: orgID,
			MemberID:       req.MemberID,
			MemberName:     req.MemberName,
			AccessKey:      req.AccessKey,
			AccessCellID:   req.AccessCellID,
			Type:           req.Type,
			ExpiresAt:      req.ExpiresAt,
		})
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/habilitations/"+h.ID)
		writeJSON(w, http.StatusCreated, h)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleHabilitationResource(w http.ResponseWriter, r *http.Request) {
	if a.access == nil {
		writeError(w, r, http.StatusServiceUnavailable, "access service unavailable")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/habilitations/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensureRole(w, r, roleAdmin) {
		return
	}
	if err := a.access.RemoveHabilitation(r.Context(), id); err != nil {
		handleAccessError(w, r, err)
		return
	}
	// Deleting an unknown id is indistinguishable from deleting an existing
	// one; both report success.
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAccessResolve(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	decision, err := a.access.EffectiveAccess(r.Context(), orgID,
		q.Get("member_id"), q.Get("role_key"), q.Get("access_key"))
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "access operation failed")
	}
}
