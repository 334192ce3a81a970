package main

import (
	"context"
	"embed"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Dannidrenovci/myriad-slides/config"
	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/editor"
	"github.com/Dannidrenovci/myriad-slides/export"
	exportapi "github.com/Dannidrenovci/myriad-slides/handlers/api/export"
	ingestapi "github.com/Dannidrenovci/myriad-slides/handlers/api/ingest"
	"github.com/Dannidrenovci/myriad-slides/handlers/api/presentations"
	"github.com/Dannidrenovci/myriad-slides/handlers/api/sessions"
	"github.com/Dannidrenovci/myriad-slides/handlers/auth"
	"github.com/Dannidrenovci/myriad-slides/handlers/websocket"
	"github.com/Dannidrenovci/myriad-slides/ingest"
	"github.com/Dannidrenovci/myriad-slides/llm"
	authMiddleware "github.com/Dannidrenovci/myriad-slides/middleware"
	"github.com/Dannidrenovci/myriad-slides/notify"
	"github.com/Dannidrenovci/myriad-slides/outbox"
	"github.com/Dannidrenovci/myriad-slides/stores"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

//go:embed all:web
var assets embed.FS

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and socket.io server",
	RunE:  runServe,
}

// app holds everything the router needs.
type app struct {
	store    stores.Store
	blobs    core.BlobStore
	auth     *auth.Auth
	pipeline *ingest.Pipeline
	renderer *export.Renderer
	registry *editor.Registry
	collab   *websocket.Collab
	notices  *notify.Hub
}

// newModel returns the configured completer. Without credentials the server
// still starts and uploads fail during processing.
func newModel(ctx context.Context, c config.AIConfig) llm.Completer {
	model, err := llm.New(ctx, c)
	if err != nil {
		logrus.WithError(err).Warn("AI provider unavailable, uploaded decks will not be processed")
		return llm.Unavailable{Err: err}
	}
	logrus.WithField("provider", c.Provider).Info("Use AI provider")
	return model
}

func newApp(ctx context.Context, c *config.Config) (*app, error) {
	store, err := stores.GetStore(c.Storage)
	if err != nil {
		return nil, err
	}
	blobs, err := stores.GetBlobStore(ctx, c.Storage)
	if err != nil {
		return nil, err
	}
	renderer, err := export.NewRenderer()
	if err != nil {
		return nil, err
	}

	a := &app{
		store:    store,
		blobs:    blobs,
		renderer: renderer,
		notices:  notify.NewHub(c.Editor.NoticeTTL),
		auth:     auth.New(ctx, c.Auth, store),
		pipeline: ingest.New(store, store, blobs, newModel(ctx, c.AI)),
	}
	a.registry = editor.NewRegistry(store, store, a.notices, editor.RegistryOptions{
		CoalesceWindow: c.Editor.CoalesceWindow,
		Retry: outbox.RetryPolicy{
			MaxAttempts: c.Editor.OutboxMaxAttempts,
			BaseDelay:   c.Editor.OutboxBaseDelay,
			MaxDelay:    outbox.DefaultRetryPolicy.MaxDelay,
		},
		OnChange: a.broadcast,
	})
	a.collab = websocket.New(a.auth, a.registry, a.notices)
	return a, nil
}

func (a *app) broadcast(st editor.State) {
	if a.collab != nil {
		a.collab.BroadcastState(st)
	}
}

func handleUI() http.HandlerFunc {
	sub, err := fs.Sub(assets, "web")
	if err != nil {
		panic(err)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" || path == "" {
			path = "/index.html"
		}

		f, err := sub.Open(strings.TrimPrefix(path, "/"))
		if err != nil {
			// Page routes like /dashboard or /editor/{id} are handled client side.
			if errors.Is(err, fs.ErrNotExist) && !strings.Contains(path, ".") {
				path = "/index.html"
				f, err = sub.Open("index.html")
			} else {
				http.NotFound(w, r)
				return
			}
		}
		if err != nil {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		defer f.Close()

		content, err := io.ReadAll(f)
		if err != nil {
			http.Error(w, "Error reading file", http.StatusInternalServerError)
			return
		}

		contentType := http.DetectContentType(content)
		switch {
		case strings.HasSuffix(path, ".js"):
			contentType = "application/javascript"
		case strings.HasSuffix(path, ".html"):
			contentType = "text/html; charset=utf-8"
		case strings.HasSuffix(path, ".css"):
			contentType = "text/css"
		case strings.HasSuffix(path, ".svg"):
			contentType = "image/svg+xml"
		}
		w.Header().Set("Content-Type", contentType)
		if _, err := w.Write(content); err != nil {
			logrus.WithError(err).WithField("path", path).Debug("Failed to serve file")
		}
	}
}

func setupRouter(a *app) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", a.auth.HandleSignup)
		r.Post("/password", a.auth.HandlePasswordLogin)
		r.Get("/logout", a.auth.HandleLogout)
		r.Post("/logout", a.auth.HandleLogout)
		r.Get("/login", a.auth.HandleLogin)
		r.Get("/callback", a.auth.HandleCallback)
		r.With(authMiddleware.AuthJWT(a.auth)).Get("/me", a.auth.HandleMe)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT(a.auth))

		r.Get("/layouts", sessions.HandleLayouts())
		r.Post("/process-pptx", ingestapi.HandleProcess(a.store, a.pipeline))

		r.Route("/presentations", func(r chi.Router) {
			r.Get("/", presentations.HandleList(a.store, a.store))
			r.Post("/", presentations.HandleUpload(a.store, a.blobs, a.pipeline))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", presentations.HandleGet(a.store, a.store))
				r.Delete("/", presentations.HandleDelete(a.store, a.blobs, a.registry))
				r.Get("/export.pdf", exportapi.HandleExportPDF(a.store, a.store, a.registry, a.renderer))
				r.Route("/editor", func(r chi.Router) {
					sessions.Routes(r, a.registry)
				})
			})
		})
	})

	r.Mount("/socket.io/", a.collab.Server().ServeHandler(nil))
	r.NotFound(authMiddleware.SessionBoundary(a.auth)(handleUI()).ServeHTTP)
	return r
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           setupRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logrus.WithField("addr", cfg.Listen).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			logrus.WithField("event", "start server").Error(err)
			return err
		}
	case <-ctx.Done():
	}

	logrus.Info("Shutting down")
	return a.shutdown(srv)
}

// shutdown stops accepting requests, then flushes every open session so
// no accepted edit is lost.
func (a *app) shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	a.collab.Close()
	if err := a.registry.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Failed to flush open sessions")
		errs = append(errs, err)
	}
	a.notices.Close()
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
