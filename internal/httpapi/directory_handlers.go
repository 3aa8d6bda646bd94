package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"arkiva.org/internal/directory"
)

type migrateResponse struct {
	ID string `json:"id"`
}

func (a *API) handleDirectoryOrganizations(w http.ResponseWriter, r *http.Request) {
	if a.directory == nil {
		writeError(w, r, http.StatusServiceUnavailable, "directory service unavailable")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureRole(w, r, roleAdmin) {
		return
	}
	var req directory.OrganizationInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.directory.MigrateOrganization(r.Context(), req)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, migrateResponse{ID: id})
}

func (a *API) handleDirectoryUsers(w http.ResponseWriter, r *http.Request) {
	if a.directory == nil {
		writeError(w, r, http.StatusServiceUnavailable, "directory service unavailable")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureRole(w, r, roleAdmin) {
		return
	}
	var req directory.UserInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.directory.MigrateUser(r.Context(), req)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, migrateResponse{ID: id})
}

func (a *API) handleDirectoryUserResource(w http.ResponseWriter, r *http.Request) {
	if a.directory == nil {
		writeError(w, r, http.StatusServiceUnavailable, "directory service unavailable")
		return
	}
	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/directory/users/"), "/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, err := a.directory.GetByUserID(r.Context(), userID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "directory operation failed")
	}
}
