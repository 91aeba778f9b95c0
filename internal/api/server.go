// Package api serves the bookkeeping operations over HTTP.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/api/middleware"
	"github.com/Veraticus/the-books-must-balance/internal/bankfeed"
	"github.com/Veraticus/the-books-must-balance/internal/categorize"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/review"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// Deps are the services behind the endpoints. Syncer, Categorizer and
// Reconciler may be nil when their vendor is not configured; their endpoints
// then answer 503.
type Deps struct {
	Storage     service.Storage
	Syncer      *bankfeed.Syncer
	Categorizer *categorize.Categorizer
	Reconciler  *reconcile.Reconciler
	Review      *review.Service
	Logger      *slog.Logger
	Now         func() time.Time
	// TLS, when set, makes ListenAndServe serve HTTPS.
	TLS        *tls.Config
	CORSOrigin string
}

// Server holds the HTTP handlers.
type Server struct {
	storage     service.Storage
	syncer      *bankfeed.Syncer
	categorizer *categorize.Categorizer
	reconciler  *reconcile.Reconciler
	review      *review.Service
	logger      *slog.Logger
	now         func() time.Time
	tls         *tls.Config
	corsOrigin  string
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		storage:     deps.Storage,
		syncer:      deps.Syncer,
		categorizer: deps.Categorizer,
		reconciler:  deps.Reconciler,
		review:      deps.Review,
		logger:      common.ComponentLogger(deps.Logger, "api"),
		now:         now,
		corsOrigin:  deps.CORSOrigin,
		tls:         deps.TLS,
	}
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /functions/sync-transactions", s.handleSync)
	mux.HandleFunc("POST /functions/categorize-transactions", s.handleCategorize)
	mux.HandleFunc("POST /functions/reconcile-transactions", s.handleReconcile)
	mux.HandleFunc("GET /functions/review-transactions", s.handleReviewList)
	mux.HandleFunc("POST /functions/review-transactions/flip-type", s.handleFlipType)
	mux.HandleFunc("POST /functions/review-transactions/accept", s.handleAcceptFlag)
	mux.HandleFunc("POST /functions/create-link-token", s.handleCreateLinkToken)
	mux.HandleFunc("POST /functions/exchange-public-token", s.handleExchangePublicToken)
	mux.HandleFunc("GET /functions/bank-accounts", s.handleListAccounts)
	mux.HandleFunc("GET /functions/categories", s.handleListCategories)
	mux.HandleFunc("POST /functions/categories", s.handleCreateCategory)
	mux.HandleFunc("POST /functions/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   s.now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logger(s.logger),
		middleware.CORS(s.corsOrigin),
	)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Categorization and reconciliation wait on the model.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
		TLSConfig:    s.tls,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", addr, "tls", s.tls != nil)
		if s.tls != nil {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
