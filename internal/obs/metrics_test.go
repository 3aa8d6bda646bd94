package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                     "/",
		"/":                                    "/",
		"/metrics":                             "/metrics",
		"/v1/organizations/abc/matrix":         "/v1/organizations/:id/matrix",
		"/v1/organizations/abc/matrix/toggle":  "/v1/organizations/:id/matrix/toggle",
		"/v1/organizations/abc/audit?limit=10": "/v1/organizations/:id/audit",
		"/v1/habilitations/01HX2":              "/v1/habilitations/:id",
		"/v1/directory/users/ext-1":            "/v1/directory/users/:id",
		"/v1/directory/organizations":          "/v1/directory/organizations",
		"/v1/audit":                            "/v1/audit",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
