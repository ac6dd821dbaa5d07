package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/apiclient/credential"
)

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getWithToken(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestLogin(t *testing.T) {
	srv := New(t, WithUser("ada", "secret", "acme"))

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
	}{
		{"valid", map[string]string{"username": "ada", "password": "secret"}, http.StatusOK},
		{"wrong password", map[string]string{"username": "ada", "password": "nope"}, http.StatusUnauthorized},
		{"missing field", map[string]string{"username": "ada"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+LoginPath, tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("got %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var pair credential.Pair
			_ = json.NewDecoder(resp.Body).Decode(&pair)
			claims, err := credential.DecodeClaims(pair.Access)
			if err != nil {
				t.Fatalf("decode access: %v", err)
			}
			if claims.Subject != "ada" || claims.TenantID != "acme" {
				t.Errorf("got %+v", claims)
			}
		})
	}
}

func TestRenew_Rotates(t *testing.T) {
	srv := New(t)
	pair := srv.IssuePair("ada", "")

	resp := postJSON(t, srv.URL+RefreshPath, map[string]string{"refresh": pair.Refresh})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	var next credential.Pair
	_ = json.NewDecoder(resp.Body).Decode(&next)
	if !next.Complete() || next.Refresh == pair.Refresh {
		t.Errorf("expected a rotated pair, got %+v", next)
	}

	resp = postJSON(t, srv.URL+RefreshPath, map[string]string{"refresh": pair.Refresh})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("reused refresh token: got %d, want 401", resp.StatusCode)
	}
	if srv.RenewCalls() != 2 {
		t.Errorf("got %d renew calls, want 2", srv.RenewCalls())
	}
}

func TestRenew_RejectsAccessToken(t *testing.T) {
	srv := New(t)
	pair := srv.IssuePair("ada", "")

	resp := postJSON(t, srv.URL+RefreshPath, map[string]string{"refresh": pair.Access})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", resp.StatusCode)
	}
}

func TestFailRenewals(t *testing.T) {
	srv := New(t)
	pair := srv.IssuePair("ada", "")
	srv.FailRenewals(true)

	resp := postJSON(t, srv.URL+RefreshPath, map[string]string{"refresh": pair.Refresh})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", resp.StatusCode)
	}
}

func TestRequireAuth(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := New(t, WithClock(func() time.Time { return now }))
	pair := srv.IssuePair("ada", "acme")

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"valid", pair.Access, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"expired", srv.ExpiredAccess("ada"), http.StatusUnauthorized},
		{"refresh token", pair.Refresh, http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := getWithToken(t, srv.URL+MePath, tt.token)
			if resp.StatusCode != tt.want {
				t.Errorf("got %d, want %d", resp.StatusCode, tt.want)
			}
			if resp.StatusCode == http.StatusUnauthorized && resp.Header.Get("X-Correlation-ID") == "" {
				t.Error("expected a correlation id header on errors")
			}
		})
	}
}

func TestSequence(t *testing.T) {
	srv := New(t)
	srv.Handle(http.MethodGet, "/flaky", Sequence(
		Reply{Status: http.StatusServiceUnavailable},
		Reply{Status: http.StatusOK, Body: gin.H{"ok": true}},
	))

	want := []int{503, 200, 200}
	for i, code := range want {
		resp := getWithToken(t, srv.URL+"/flaky", "")
		if resp.StatusCode != code {
			t.Errorf("request %d: got %d, want %d", i, resp.StatusCode, code)
		}
	}
	if got := len(srv.Requests("/flaky")); got != 3 {
		t.Errorf("got %d recorded requests, want 3", got)
	}
}
