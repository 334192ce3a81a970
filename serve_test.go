package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dannidrenovci/myriad-slides/config"
	"github.com/Dannidrenovci/myriad-slides/llm"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	c := config.Default()
	c.Auth.JWTSecret = "test-secret"

	a, err := newApp(context.Background(), c)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	srv := httptest.NewServer(setupRouter(a))
	t.Cleanup(func() {
		srv.Close()
		if err := a.shutdown(&http.Server{}); err != nil {
			t.Errorf("shutdown() error = %v", err)
		}
	})
	return srv
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func TestRouter_Flow(t *testing.T) {
	srv := newTestServer(t)
	client := noRedirect()

	resp, err := client.Get(srv.URL + "/api/presentations")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous list status = %d, want 401", resp.StatusCode)
	}

	resp, err = client.Get(srv.URL + "/dashboard")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Errorf("anonymous dashboard = %d %q, want redirect to /login", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = client.Get(srv.URL + "/login")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("login page = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, err = client.Post(srv.URL+"/auth/signup", "application/json",
		strings.NewReader(`{"email":"ann@example.com","password":"secret1"}`))
	if err != nil {
		t.Fatal(err)
	}
	var session struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&session)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || session.Token == "" {
		t.Fatalf("signup = %d, token %q", resp.StatusCode, session.Token)
	}

	for _, path := range []string{"/api/presentations", "/api/layouts", "/auth/me"} {
		req, _ := http.NewRequest("GET", srv.URL+path, nil)
		req.Header.Set("Authorization", "Bearer "+session.Token)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest("GET", srv.URL+"/login", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: session.Token})
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/dashboard" {
		t.Errorf("signed-in login page = %d %q, want redirect to /dashboard", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = client.Get(srv.URL + "/missing.js")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing asset status = %d, want 404", resp.StatusCode)
	}
}

func TestNewModel_Unavailable(t *testing.T) {
	model := newModel(context.Background(), config.AIConfig{Provider: "openai"})
	if _, ok := model.(llm.Unavailable); !ok {
		t.Fatalf("newModel() = %T, want llm.Unavailable", model)
	}
	if _, err := model.CompleteJSON(context.Background(), "system", "prompt"); err == nil {
		t.Error("unavailable model should fail")
	}
}
