package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dannidrenovci/myriad-slides/handlers/auth"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type contextKey string

const ClaimsContextKey = contextKey("claims")

// TokenParser extracts verified claims from a request.
type TokenParser interface {
	ParseRequest(r *http.Request) (*auth.AppClaims, error)
}

// AuthJWT rejects API requests without a valid Bearer token or session
// cookie and stores the claims in the request context.
func AuthJWT(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := parser.ParseRequest(r)
			if err != nil {
				logrus.WithError(err).WithField("path", r.URL.Path).Debug("Rejected unauthenticated request")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Invalid or missing token"})
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Claims returns the claims stored by AuthJWT.
func Claims(ctx context.Context) (*auth.AppClaims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.AppClaims)
	return claims, ok && claims != nil
}

var (
	protectedPages = []string{"/dashboard", "/editor"}
	guestPages     = []string{"/login", "/signup"}
)

func underAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// SessionBoundary redirects page requests across the signed-in boundary:
// protected pages without a session go to /login, and the login and signup
// pages with a session go to /dashboard. Other paths pass through.
func SessionBoundary(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			protected, guest := underAny(path, protectedPages), underAny(path, guestPages)
			if !protected && !guest {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := parser.ParseRequest(r)
			signedIn := err == nil
			switch {
			case protected && !signedIn:
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			case guest && signedIn:
				http.Redirect(w, r, "/dashboard", http.StatusFound)
				return
			}
			if signedIn {
				r = r.WithContext(context.WithValue(r.Context(), ClaimsContextKey, claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}
