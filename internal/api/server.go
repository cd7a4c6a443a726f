// Package api serves the admin dashboard and client loan endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/microfinance-cli/internal/metrics"
	"github.com/sells-group/microfinance-cli/internal/model"
	"github.com/sells-group/microfinance-cli/internal/notify"
	"github.com/sells-group/microfinance-cli/internal/store"
	"github.com/sells-group/microfinance-cli/internal/upload"
)

// Options configures a Server.
type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	AllowedOrigins []string
	// AdminName and AdminPhone address analysis-complete notices. No notice
	// is sent when AdminPhone is empty.
	AdminName  string
	AdminPhone string
}

// Server wires the store, analyses and notifier into HTTP handlers.
type Server struct {
	store    store.Store
	notifier *notify.Notifier
	opts     Options
	now      func() time.Time

	// background notification sends
	wg sync.WaitGroup
}

// New creates a Server. notifier may be nil, in which case no SMS is sent.
func New(st store.Store, notifier *notify.Notifier, opts Options) *Server {
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = upload.DefaultMaxBytes
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.AdminName == "" {
		opts.AdminName = "Admin"
	}
	metrics.Init()
	return &Server{
		store:    st,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
	}
}

// Router builds the HTTP route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/risk", s.handleRisk)
		r.Post("/client/loans", s.handleCreateLoan)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/excel-upload", s.handleUpload)
			r.Get("/excel-files", s.handleListFiles)
			r.Get("/excel-files/{id}/results", s.handleFileResults)
			r.Get("/loans", s.handleListLoans)
			r.Get("/loans/{id}", s.handleGetLoan)
			r.Put("/loans/{id}", s.handleUpdateLoan)
			r.Post("/messages", s.handleSendMessage)
		})
	})

	return r
}

// Wait blocks until background notifications finish.
func (s *Server) Wait() {
	s.wg.Wait()
}

// ListenAndServe runs the API on addr until ctx is cancelled, then shuts
// down gracefully and waits for pending notifications.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("graceful shutdown failed", zap.Error(err))
			srv.Close() //nolint:errcheck
		}
		s.Wait()
		return nil
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			zap.L().Warn("health check: store unreachable", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// notifyAsync sends an SMS without holding up the response. Failures are
// logged and recorded by the notifier.
func (s *Server) notifyAsync(ctx context.Context, to, body string, typ model.MessageType) {
	if s.notifier == nil || !s.notifier.Configured() || to == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.notifier.Send(ctx, to, body, typ); err != nil {
			zap.L().Warn("background notification failed", zap.String("type", string(typ)), zap.Error(err))
		}
	}()
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}
