package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/Dannidrenovci/myriad-slides/config"
	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	// SessionCookie carries the signed session token for browser requests.
	SessionCookie = "session"
	stateCookie   = "oauth_state"

	tokenLifetime     = 7 * 24 * time.Hour
	minPasswordLength = 6
)

// AppClaims represents the custom claims for the JWT.
type AppClaims struct {
	jwt.RegisteredClaims
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	Name      string `json:"name"`
}

// OIDCClaims represents the claims from OIDC token
type OIDCClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
	Sub               string `json:"sub"`
}

// Auth issues and verifies session tokens. Password accounts live in the
// user store; GitHub and OIDC identities only live in the token.
type Auth struct {
	users     core.UserStore
	jwtSecret []byte

	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	provider    string

	now func() time.Time
}

// New configures password auth and, when credentials are present, OIDC or
// GitHub login. OIDC wins when both are configured.
func New(ctx context.Context, cfg config.AuthConfig, users core.UserStore) *Auth {
	a := &Auth{users: users, jwtSecret: []byte(cfg.JWTSecret), now: time.Now}
	if len(a.jwtSecret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}

	switch {
	case cfg.OIDCIssuerURL != "" && cfg.OIDCClientID != "":
		logrus.Info("Initializing OIDC authentication provider.")
		a.initOIDC(ctx, cfg)
	case cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "":
		logrus.Info("Initializing GitHub authentication provider.")
		a.oauthConfig = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}
		a.provider = "github"
	default:
		logrus.Info("No OAuth provider configured; password login only.")
	}
	return a
}

func (a *Auth) initOIDC(ctx context.Context, cfg config.AuthConfig) {
	if cfg.OIDCClientSecret == "" {
		logrus.Warn("OIDC credentials are not set. OIDC authentication routes will not work.")
		return
	}
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuerURL)
	if err != nil {
		logrus.WithError(err).Error("Failed to create OIDC provider")
		return
	}
	a.oauthConfig = &oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint:     provider.Endpoint(),
	}
	a.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})
	a.provider = "oidc"
	logrus.Info("OIDC provider initialized")
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	User  *core.User `json:"user"`
	Token string     `json:"token"`
}

func decodeCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&c); err != nil {
			return c, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return c, err
		}
		c.Email, c.Password, c.Name = r.PostForm.Get("email"), r.PostForm.Get("password"), r.PostForm.Get("name")
	}
	c.Email = strings.TrimSpace(c.Email)
	return c, nil
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// HandleSignup creates a password account and starts a session.
func (a *Auth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		renderError(w, r, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(c.Password) < minPasswordLength {
		renderError(w, r, http.StatusBadRequest, fmt.Sprintf("Password should be at least %d characters", minPasswordLength))
		return
	}

	if _, err := a.users.FindUserByEmail(r.Context(), c.Email); err == nil {
		renderError(w, r, http.StatusConflict, "User already registered")
		return
	} else if !errors.Is(err, core.ErrNotFound) {
		logrus.WithError(err).Error("Failed to look up user")
		renderError(w, r, http.StatusInternalServerError, "Failed to create account")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Error("Failed to hash password")
		renderError(w, r, http.StatusInternalServerError, "Failed to create account")
		return
	}
	user := &core.User{Email: c.Email, Login: c.Email, Name: c.Name, PasswordHash: hash}
	if err := a.users.CreateUser(r.Context(), user); err != nil {
		logrus.WithError(err).WithField("email", c.Email).Error("Failed to create user")
		renderError(w, r, http.StatusInternalServerError, "Failed to create account")
		return
	}
	user.Subject = passwordSubject(user)
	logrus.WithField("subject", user.Subject).Info("Account created")

	a.startSession(w, r, http.StatusCreated, user)
}

// HandlePasswordLogin checks email and password and starts a session.
func (a *Auth) HandlePasswordLogin(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if c.Email == "" || c.Password == "" {
		renderError(w, r, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := a.users.FindUserByEmail(r.Context(), c.Email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		logrus.WithError(err).Error("Failed to look up user")
		renderError(w, r, http.StatusInternalServerError, "Failed to log in")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(c.Password)) != nil {
		renderError(w, r, http.StatusUnauthorized, "Invalid login credentials")
		return
	}
	user.Subject = passwordSubject(user)
	a.startSession(w, r, http.StatusOK, user)
}

// HandleLogout clears the session cookie.
func (a *Auth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if r.Method == http.MethodGet {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	render.JSON(w, r, map[string]bool{"success": true})
}

// HandleMe returns the identity carried by a valid session.
func (a *Auth) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, err := a.ParseRequest(r)
	if err != nil {
		renderError(w, r, http.StatusUnauthorized, "Not signed in")
		return
	}
	render.JSON(w, r, claims)
}

func (a *Auth) startSession(w http.ResponseWriter, r *http.Request, status int, user *core.User) {
	token, err := a.CreateJWT(user)
	if err != nil {
		logrus.WithError(err).Error("Failed to create JWT")
		renderError(w, r, http.StatusInternalServerError, "Failed to start session")
		return
	}
	a.setSessionCookie(w, r, token)
	render.Status(r, status)
	render.JSON(w, r, sessionResponse{User: user, Token: token})
}

func (a *Auth) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  a.now().Add(tokenLifetime),
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func passwordSubject(u *core.User) string {
	return "password:" + u.ID
}

// HandleLogin redirects to the configured OAuth provider.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if a.oauthConfig == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		http.Error(w, "Failed to generate state for login", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(stateBytes)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  a.now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})

	var opts []oauth2.AuthCodeOption
	if a.provider == "oidc" {
		opts = append(opts, oauth2.AccessTypeOffline)
	}
	http.Redirect(w, r, a.oauthConfig.AuthCodeURL(state, opts...), http.StatusTemporaryRedirect)
}

// HandleCallback finishes the OAuth flow and starts a session.
func (a *Auth) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if a.oauthConfig == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}
	log := logrus.WithField("provider", a.provider)

	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || state.Value != r.FormValue("state") {
		log.Warn("OAuth state mismatch")
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}
	code := r.FormValue("code")
	if code == "" {
		log.Error("no code in callback")
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}

	token, err := a.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		log.WithError(err).Error("failed to exchange token")
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}

	var user *core.User
	if a.provider == "oidc" {
		user, err = a.oidcUser(r.Context(), token)
	} else {
		user, err = a.githubUser(r.Context(), token)
	}
	if err != nil {
		log.WithError(err).Error("failed to resolve user")
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}

	jwtToken, err := a.CreateJWT(user)
	if err != nil {
		log.WithError(err).Error("failed to create JWT")
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}
	a.setSessionCookie(w, r, jwtToken)
	http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
}

func (a *Auth) githubUser(ctx context.Context, token *oauth2.Token) (*core.User, error) {
	resp, err := a.oauthConfig.Client(ctx, token).Get("https://api.github.com/user")
	if err != nil {
		return nil, fmt.Errorf("get user from github: %w", err)
	}
	defer resp.Body.Close()

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&githubUser); err != nil {
		return nil, fmt.Errorf("decode github user: %w", err)
	}
	return &core.User{
		Subject:   fmt.Sprintf("github:%d", githubUser.ID),
		Login:     githubUser.Login,
		Email:     githubUser.Email,
		AvatarURL: githubUser.AvatarURL,
		Name:      githubUser.Name,
	}, nil
}

func (a *Auth) oidcUser(ctx context.Context, token *oauth2.Token) (*core.User, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("no id_token in token response")
	}
	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify ID token: %w", err)
	}
	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}

	user := &core.User{
		Subject:   claims.Sub,
		Login:     claims.PreferredUsername,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
		Name:      claims.Name,
	}
	if user.Login == "" && user.Email != "" {
		user.Login = user.Email
	}
	return user, nil
}

func (a *Auth) CreateJWT(user *core.User) (string, error) {
	if len(a.jwtSecret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := a.now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Login:     user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Name:      user.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *Auth) ParseJWT(tokenString string) (*AppClaims, error) {
	if len(a.jwtSecret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid && claims.Subject != "" {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// ParseRequest reads the token from a Bearer header or, failing that, the
// session cookie.
func (a *Auth) ParseRequest(r *http.Request) (*AppClaims, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return nil, errors.New("authorization header format must be Bearer {token}")
		}
		return a.ParseJWT(parts[1])
	}
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, errors.New("no session")
	}
	return a.ParseJWT(cookie.Value)
}
