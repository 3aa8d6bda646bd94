package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arkiva.org/internal/access"
	"arkiva.org/internal/audit"
	"arkiva.org/internal/auth"
	"arkiva.org/internal/directory"
	"arkiva.org/internal/obs"
)

const serviceName = "arkiva-api"

// ReadyProbe checks dependencies before the service reports ready.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the wiring for the HTTP layer.
type Options struct {
	ReadyProbe ReadyProbe
	Version    string
	Tokens     *auth.Tokens
	TokenTTL   time.Duration
	Access     *access.Service
	Audit      *audit.Service
	Directory  *directory.Service

	MaxBodyBytes  int64
	RatePerSecond float64
	RateBurst     int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	tokens     *auth.Tokens
	tokenTTL   time.Duration
	access     *access.Service
	auditLog   *audit.Service
	directory  *directory.Service

	maxBodyBytes  int64
	ratePerSecond float64
	rateBurst     int
}

func New(opts Options) *API {
	a := &API{
		mux:           http.NewServeMux(),
		readyProbe:    opts.ReadyProbe,
		version:       opts.Version,
		tokens:        opts.Tokens,
		tokenTTL:      opts.TokenTTL,
		access:        opts.Access,
		auditLog:      opts.Audit,
		directory:     opts.Directory,
		maxBodyBytes:  opts.MaxBodyBytes,
		ratePerSecond: opts.RatePerSecond,
		rateBurst:     opts.RateBurst,
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = time.Hour
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/organizations/", a.handleOrganizationScoped)
	a.mux.HandleFunc("/v1/habilitations/", a.handleHabilitationResource)
	a.mux.HandleFunc("/v1/audit", a.handleAuditByResource)
	a.mux.HandleFunc("/v1/directory/organizations", a.handleDirectoryOrganizations)
	a.mux.HandleFunc("/v1/directory/users", a.handleDirectoryUsers)
	a.mux.HandleFunc("/v1/directory/users/", a.handleDirectoryUserResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	if a.ratePerSecond > 0 && a.rateBurst > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	}
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}
