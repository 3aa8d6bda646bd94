package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"arkiva.org/internal/access"
	"arkiva.org/internal/audit"
	"arkiva.org/internal/auth"
	"arkiva.org/internal/directory"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	auditStore := audit.NewInMemory()
	auditSvc, err := audit.NewService(auditStore)
	if err != nil {
		t.Fatalf("audit.NewService: %v", err)
	}
	accessSvc, err := access.NewService(access.NewInMemory(auditStore), auditSvc)
	if err != nil {
		t.Fatalf("access.NewService: %v", err)
	}
	directorySvc, err := directory.NewService(directory.NewInMemory(auditStore), auditSvc)
	if err != nil {
		t.Fatalf("directory.NewService: %v", err)
	}

	api := New(Options{
		ReadyProbe:    ReadyProbe{},
		Version:       "test",
		Tokens:        auth.NewTokens("test-secret"),
		TokenTTL:      15 * time.Minute,
		Access:        accessSvc,
		Audit:         auditSvc,
		Directory:     directorySvc,
		RatePerSecond: 100,
		RateBurst:     100,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) put(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPut, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(user string, roles []string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"user":  user,
		"roles": roles,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func (c *apiClient) authed(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthAndInfo(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["service"] != "arkiva-api" {
		t.Fatalf("unexpected service name: %v", payload["service"])
	}

	resp = api.get("/v1/info", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info: expected 200, got %d", resp.StatusCode)
	}
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/organizations/org-1/matrix", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestPrivilegedWritesRequireAdminRole(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("viewer-1", []string{"viewer"})

	resp := api.post("/v1/organizations/org-1/matrix/toggle", map[string]any{
		"access_key": "documents.read",
		"role_key":   "editor",
	}, api.authed(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.StatusCode)
	}
}

func TestMatrixToggleFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("admin-1", []string{"admin"})

	resp := api.post("/v1/organizations/org-1/matrix/toggle", map[string]any{
		"access_key": "documents.read",
		"role_key":   "editor",
	}, api.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle: expected 200, got %d", resp.StatusCode)
	}
	result := decode[access.ToggleResult](t, resp)
	if result.Action != access.ToggleActionCreated || !result.Granted {
		t.Fatalf("expected created+granted, got %+v", result)
	}

	resp = api.post("/v1/organizations/org-1/matrix/toggle", map[string]any{
		"access_key": "documents.read",
		"role_key":   "editor",
	}, api.authed(token))
	result = decode[access.ToggleResult](t, resp)
	if result.Action != access.ToggleActionToggled || result.Granted {
		t.Fatalf("expected toggled+denied, got %+v", result)
	}

	resp = api.get("/v1/organizations/org-1/matrix", nil, api.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("matrix list: expected 200, got %d", resp.StatusCode)
	}
	list := decode[matrixListResponse](t, resp)
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 matrix entry, got %d", len(list.Items))
	}
	if list.Items[0].Granted {
		t.Fatalf("entry must be denied after second toggle")
	}
}

func TestMatrixReplace(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("admin-1", []string{"admin"})

	resp := api.put("/v1/organizations/org-1/matrix", map[string]any{
		"entries": []map[string]any{
			{"access_key": "documents.read", "role_key": "editor", "granted": true},
			{"access_key": "documents.write", "role_key": "editor", "granted": false},
		},
	}, api.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replace: expected 200, got %d", resp.StatusCode)
	}
	result := decode[replaceMatrixResponse](t, resp)
	if result.Count != 2 {
		t.Fatalf("expected count 2, got %d", result.Count)
	}

	resp = api.put("/v1/organizations/org-1/matrix", map[string]any{
		"entries": []map[string]any{
			{"access_key": "documents.read", "role_key": "editor", "granted": true},
			{"access_key": "documents.read", "role_key": "editor", "granted": false},
		},
	}, api.authed(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate entries: expected 400, got %d", resp.StatusCode)
	}
}

func TestHabilitationLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("admin-1", []string{"admin"})

	resp := api.post("/v1/organizations/org-1/habilitations", map[string]any{
		"member_id":   "member-1",
		"member_name": "Ada",
		"access_key":  "documents.read",
		"type":        "revoke",
	}, api.authed(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add habilitation: expected 201, got %d", resp.StatusCode)
	}
	h := decode[access.Habilitation](t, resp)
	if h.ID == "" {
		t.Fatalf("expected habilitation id")
	}

	resp = api.get("/v1/organizations/org-1/habilitations", nil, api.authed(token))
	list := decode[habilitationListResponse](t, resp)
	if len(list.Items) != 1 || list.Items[0].ID != h.ID {
		t.Fatalf("unexpected habilitation list: %+v", list.Items)
	}

	resp = api.do(http.MethodDelete, "/v1/habilitations/"+h.ID, nil, api.authed(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	// Deleting again is a silent no-op.
	resp2 := api.do(http.MethodDelete, "/v1/habilitations/"+h.ID, nil, api.authed(token))
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNoContent {
		t.Fatalf("repeat delete: expected 204, got %d", resp2.StatusCode)
	}
}

func TestHabilitationTemporaryRequiresExpiry(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("admin-1", []string{"admin"})

	resp := api.post("/v1/organizations/org-1/habilitations", map[string]any{
		"member_id":   "member-1",
		"member_name": "Ada",
		"access_key":  "documents.read",
		"type":        "temporary",
	}, api.authed(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without expires_at, got %d", resp.StatusCode)
	}
}

func TestAccessResolveEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("admin-1", []string{"admin"})

	resp := api.post("/v1/organizations/org-1/matrix/toggle", map[string]any{
		"access_key": "documents.read",
		"role_key":   "editor",
	}, api.authed(token))
	_ = resp.Body.Close()

	params := url.Values{}
	params.Set("member_id", "member-1")
	params.Set("role_key", "editor")
	params.Set("access_key", "documents.read")
	resp = api.get("/v1/organizations/org-1/access/resolve", params, api.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", resp.StatusCode)
	}
	d := decode[access.Decision](t, resp)
	if !d.Granted || d.Source != access.DecisionSourceMatrix {
		t.Fatalf("expected matrix grant, got %+v", d)
	}

	// Missing query parameters are a client error.
	resp = api.get("/v1/organizations/org-1/access/resolve", nil, api.authed(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without parameters, got %d", resp.StatusCode)
	}
}

func TestOrganizationAuditTrail(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("admin-1", []string{"admin"})

	for i := 0; i < 3; i++ {
		resp := api.post("/v1/organizations/org-1/matrix/toggle", map[string]any{
			"access_key": "documents.read",
			"role_key":   "editor",
		}, api.authed(token))
		_ = resp.Body.Close()
	}

	params := url.Values{}
	params.Set("limit", "2")
	resp := api.get("/v1/organizations/org-1/audit", params, api.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", resp.StatusCode)
	}
	list := decode[auditListResponse](t, resp)
	if len(list.Items) != 2 {
		t.Fatalf("limit must apply, got %d entries", len(list.Items))
	}
	if list.Items[0].UserID != "admin-1" {
		t.Fatalf("audit entry must record the caller, got %q", list.Items[0].UserID)
	}
	if list.Items[0].Action != "access.matrix.toggle" {
		t.Fatalf("unexpected action: %s", list.Items[0].Action)
	}
}

func TestAuditByResourceEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("admin-1", []string{"admin"})

	resp := api.post("/v1/organizations/org-1/habilitations", map[string]any{
		"member_id":   "member-1",
		"member_name": "Ada",
		"access_key":  "documents.read",
		"type":        "grant",
	}, api.authed(token))
	h := decode[access.Habilitation](t, resp)

	params := url.Values{}
	params.Set("resource_type", "habilitation")
	params.Set("resource_id", h.ID)
	resp = api.get("/v1/audit", params, api.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit by resource: expected 200, got %d", resp.StatusCode)
	}
	list := decode[auditListResponse](t, resp)
	if len(list.Items) != 1 || list.Items[0].Action != "access.habilitation.add" {
		t.Fatalf("unexpected audit entries: %+v", list.Items)
	}

	params.Set("resource_type", "invoice")
	resp = api.get("/v1/audit", params, api.authed(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown resource type: expected 400, got %d", resp.StatusCode)
	}
}

func TestDirectoryMigrationFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("admin-1", []string{"admin"})

	resp := api.post("/v1/directory/organizations", map[string]any{
		"name":     "Acme Archives",
		"type":     "business",
		"owner_id": "owner-1",
	}, api.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("migrate org: expected 200, got %d", resp.StatusCode)
	}
	first := decode[migrateResponse](t, resp)

	resp = api.post("/v1/directory/organizations", map[string]any{
		"name":     "Acme Archives",
		"type":     "business",
		"owner_id": "owner-1",
	}, api.authed(token))
	second := decode[migrateResponse](t, resp)
	if first.ID != second.ID {
		t.Fatalf("re-migration must return the same id, got %s and %s", first.ID, second.ID)
	}

	resp = api.post("/v1/directory/users", map[string]any{
		"user_id":      "ext-1",
		"email":        "ada@example.com",
		"display_name": "Ada",
		"persona_type": "citizen",
	}, api.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("migrate user: expected 200, got %d", resp.StatusCode)
	}
	_ = decode[migrateResponse](t, resp)

	resp = api.get("/v1/directory/users/ext-1", nil, api.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get user: expected 200, got %d", resp.StatusCode)
	}
	user := decode[directory.User](t, resp)
	if !user.OnboardingCompleted {
		t.Fatalf("onboarding must be completed after migration")
	}

	resp = api.get("/v1/directory/users/missing", nil, api.authed(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing user: expected 404, got %d", resp.StatusCode)
	}
}

func TestUnknownRoutesReturn404(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("admin-1", []string{"admin"})

	resp := api.get("/v1/organizations/org-1/unknown", nil, api.authed(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
