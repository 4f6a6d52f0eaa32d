package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lukamindo/tiktok_live_go/live"
	"github.com/lukamindo/tiktok_live_go/logging"
)

// Checker runs check batches.
type Checker interface {
	Run(ctx context.Context, opts live.RunOptions) (*live.Report, error)
}

// Config holds the trigger server settings.
type Config struct {
	// CronSecret, when set, must be presented as ?token= or a bearer token.
	CronSecret string
	// BatchTimeout bounds one batch; zero means no limit beyond the request.
	BatchTimeout      time.Duration
	RequestsPerSecond float64
	Burst             int
}

// defaultTestUser is announced by test mode when no user is given.
const defaultTestUser = "someone"

// Server exposes the check over HTTP for external schedulers.
type Server struct {
	cfg      Config
	checker  Checker
	notifier live.Notifier
	logger   zerolog.Logger
	limiter  *RateLimiter

	// running is held while a batch is in progress.
	running sync.Mutex
}

// New returns a server running batches on checker and sending ping and
// test messages through notifier.
func New(cfg Config, checker Checker, notifier live.Notifier, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		checker:  checker,
		notifier: notifier,
		logger:   logger,
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.HTTPMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSecret)
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Get("/api/check", s.handleCheck)
		r.Get("/api/test", s.handleTest)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("ping") == "1":
		s.ping(w, r)
		return
	case q.Get("test") == "1":
		s.handleTest(w, r)
		return
	}

	if !s.running.TryLock() {
		WriteError(w, http.StatusConflict, "a check is already running")
		return
	}
	defer s.running.Unlock()

	opts := live.RunOptions{
		DryRun:  q.Get("dry") == "1" || q.Get("status") == "1",
		Account: strings.TrimSpace(q.Get("user")),
	}

	ctx := r.Context()
	if s.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BatchTimeout)
		defer cancel()
	}

	report, err := s.checker.Run(ctx, opts)
	if err != nil {
		log := logging.Ctx(r.Context())
		if live.IsConfigError(err) {
			log.Warn().Err(err).Msg("check rejected")
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("check failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	if err := s.notifier.Send(r.Context(), live.PingMessage()); err != nil {
		log := logging.Ctx(r.Context())
		log.Error().Err(err).Msg("ping failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "mode": "ping"})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	who := live.NormalizeAccount(r.URL.Query().Get("user"))
	if who == "" {
		who = defaultTestUser
	}
	if err := s.notifier.Send(r.Context(), live.TestMessage(who)); err != nil {
		log := logging.Ctx(r.Context())
		log.Error().Err(err).Msg("test message failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "mode": "test", "user": string(who)})
}

func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.CronSecret != "" && !validSecret(presentedSecret(r), s.cfg.CronSecret) {
			WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func presentedSecret(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func validSecret(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// ListenAndServe serves until ctx is cancelled, then shuts down within
// shutdownTimeout. In-flight batches get that long to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("server shutdown complete")
	return nil
}
