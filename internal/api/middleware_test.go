package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clipforge/clipforge/internal/logging"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) GetConfig(_ context.Context, key string) (string, error) {
	if key != AuthTokenKey {
		return "", nil
	}
	return s.token, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{
		"http://localhost:3000",
		"http://localhost",
		"https://localhost:8443",
		"http://127.0.0.1:5173",
		"http://127.0.0.1",
		"http://[::1]:3000",
	}
	for _, origin := range allowed {
		if !isAllowedOrigin(origin) {
			t.Errorf("isAllowedOrigin(%q) = false, want true", origin)
		}
	}

	denied := []string{
		"",
		"https://evil.com",
		"http://localhost.evil.com",
		"http://192.168.1.1:3000",
		"ftp://localhost:3000",
		"http://localhost:not-a-port",
		"http://localhost:0",
		"http://localhost:70000",
		"http://localhost:3000/path",
		"http://user@localhost:3000",
		"http://localhost:",
	}
	for _, origin := range denied {
		if isAllowedOrigin(origin) {
			t.Errorf("isAllowedOrigin(%q) = true, want false", origin)
		}
	}
}

func TestIsLoopbackRemoteAddr(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:12345", true},
		{"[::1]:12345", true},
		{"::1", true},
		{"[::1]", true},
		{"127.0.0.1", true},
		{"8.8.8.8:12345", false},
		{"192.168.1.1:8080", false},
		{"not-an-ip:1234", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isLoopbackRemoteAddr(tc.addr); got != tc.want {
			t.Errorf("isLoopbackRemoteAddr(%q) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}

func TestCORSAllowlist(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantACAO   string
	}{
		{"allowed get", http.MethodGet, "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"denied get still served", http.MethodGet, "https://evil.com", http.StatusOK, ""},
		{"no origin", http.MethodGet, "", http.StatusOK, ""},
		{"allowed preflight", http.MethodOptions, "http://127.0.0.1:5173", http.StatusNoContent, "http://127.0.0.1:5173"},
		{"denied preflight", http.MethodOptions, "https://evil.com", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/timeline", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			CORSAllowlist()(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantACAO {
				t.Errorf("ACAO = %q, want %q", got, tt.wantACAO)
			}
		})
	}
}

func TestCORSAllowlist_PreflightHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/media/x/source", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	rr.Header().Set("Vary", "Accept-Encoding")

	CORSAllowlist()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for preflight")
	})).ServeHTTP(rr, req)

	for _, h := range []string{"Range", "Authorization", "Content-Type"} {
		if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), h) {
			t.Errorf("Access-Control-Allow-Headers missing %s", h)
		}
	}
	for _, h := range []string{"Content-Range", "Accept-Ranges"} {
		if !strings.Contains(rr.Header().Get("Access-Control-Expose-Headers"), h) {
			t.Errorf("Access-Control-Expose-Headers missing %s", h)
		}
	}
	for _, m := range []string{"GET", "HEAD", "PUT", "DELETE"} {
		if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), m) {
			t.Errorf("Access-Control-Allow-Methods missing %s", m)
		}
	}
	vary := rr.Header().Values("Vary")
	if len(vary) != 2 || vary[0] != "Accept-Encoding" || vary[1] != "Origin" {
		t.Errorf("Vary = %v, want [Accept-Encoding Origin]", vary)
	}
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		tokens     staticTokens
		header     string
		query      string
		wantStatus int
	}{
		{"valid bearer", staticTokens{token: "secret-token"}, "Bearer secret-token", "", http.StatusOK},
		{"valid query token", staticTokens{token: "secret-token"}, "", "secret-token", http.StatusOK},
		{"missing header", staticTokens{token: "secret-token"}, "", "", http.StatusUnauthorized},
		{"wrong scheme", staticTokens{token: "secret-token"}, "Basic abc", "", http.StatusUnauthorized},
		{"wrong token", staticTokens{token: "secret-token"}, "Bearer nope", "", http.StatusUnauthorized},
		{"no stored token", staticTokens{}, "Bearer secret-token", "", http.StatusInternalServerError},
		{"store error", staticTokens{err: errors.New("db closed")}, "Bearer secret-token", "", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/timeline"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			AuthMiddleware(tt.tokens, logging.Discard())(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestLoopbackGuard(t *testing.T) {
	for addr, want := range map[string]int{
		"127.0.0.1:4000": http.StatusOK,
		"[::1]:4000":     http.StatusOK,
		"10.0.0.5:4000":  http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/media/x/source", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		LoopbackGuard()(okHandler()).ServeHTTP(rr, req)
		if rr.Code != want {
			t.Errorf("%s: status = %d, want %d", addr, rr.Code, want)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(RequestIDKey).(string)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 8 || rr.Header().Get("X-Request-ID") != seen {
		t.Errorf("generated id = %q, header = %q", seen, rr.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-1")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if seen != "client-1" {
		t.Errorf("request id = %q, want client-1", seen)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), CodeInternal) {
		t.Errorf("body = %s", rr.Body.String())
	}
}
