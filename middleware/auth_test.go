package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dannidrenovci/myriad-slides/handlers/auth"
	"github.com/golang-jwt/jwt/v5"
)

// mockParser accepts the token "good" from the header or the cookie.
type mockParser struct{}

func (mockParser) ParseRequest(r *http.Request) (*auth.AppClaims, error) {
	token := ""
	if h := r.Header.Get("Authorization"); h != "" {
		token = h[len("Bearer "):]
	} else if c, err := r.Cookie(auth.SessionCookie); err == nil {
		token = c.Value
	}
	if token != "good" {
		return nil, errors.New("invalid token")
	}
	return &auth.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}, nil
}

func echoSubject() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := Claims(r.Context()); ok {
			w.Write([]byte(claims.Subject))
			return
		}
		w.Write([]byte("anonymous"))
	})
}

func TestAuthJWT(t *testing.T) {
	handler := AuthJWT(mockParser{})(echoSubject())

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
	}{
		{"bearer", "Bearer good", "", http.StatusOK},
		{"cookie", "", "good", http.StatusOK},
		{"bad token", "Bearer bad", "", http.StatusUnauthorized},
		{"nothing", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/presentations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && rr.Body.String() != "user-1" {
				t.Errorf("body = %q, want claims subject", rr.Body.String())
			}
		})
	}
}

func TestSessionBoundary(t *testing.T) {
	handler := SessionBoundary(mockParser{})(echoSubject())

	tests := []struct {
		path         string
		signedIn     bool
		wantLocation string
	}{
		{"/dashboard", false, "/login"},
		{"/editor/abc", false, "/login"},
		{"/dashboard", true, ""},
		{"/editor/abc", true, ""},
		{"/login", true, "/dashboard"},
		{"/signup", true, "/dashboard"},
		{"/login", false, ""},
		{"/", false, ""},
		{"/dashboards-are-public", false, ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		if tt.signedIn {
			req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: "good"})
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if tt.wantLocation == "" {
			if rr.Code != http.StatusOK {
				t.Errorf("%s (signed in %v): status = %d, want pass-through", tt.path, tt.signedIn, rr.Code)
			}
			continue
		}
		if rr.Code != http.StatusFound || rr.Header().Get("Location") != tt.wantLocation {
			t.Errorf("%s (signed in %v): got %d %q, want 302 %q",
				tt.path, tt.signedIn, rr.Code, rr.Header().Get("Location"), tt.wantLocation)
		}
	}
}
