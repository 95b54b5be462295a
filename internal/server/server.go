package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/repositories"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the method-qualified patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns patterns such as "GET /auth/me"
}

// Router registers handlers and applies middleware.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Opts configures a [Server].
type Opts struct {
	Addr          string
	SessionTTL    time.Duration
	PurgeSchedule string // robfig/cron spec; empty disables expired session purging
	HashCost      int    // bcrypt cost; zero means [bcrypt.DefaultCost]
	Logger        *log.Logger
}

// Server is the account and playlist backend the sync engine talks to.
type Server struct {
	db       *sql.DB
	opts     Opts
	sessions *repositories.SessionRepository
	router   *BasicRouter
	logger   *log.Logger
}

// New wires the repositories and handlers for db. db must already be migrated.
func New(db *sql.DB, opts Opts) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.SessionTTL <= 0 {
		return nil, fmt.Errorf("%w: session ttl must be positive", shared.ErrInvalidConfig)
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.PurgeSchedule != "" {
		if _, err := cron.ParseStandard(opts.PurgeSchedule); err != nil {
			return nil, fmt.Errorf("%w: purge schedule %q: %v", shared.ErrInvalidConfig, opts.PurgeSchedule, err)
		}
	}

	users := repositories.NewUserRepository(db)
	sessions := repositories.NewSessionRepository(db)
	playlists := repositories.NewPlaylistRepository(db)

	auth := NewAuthHandler(users, sessions, opts.SessionTTL, opts.HashCost, opts.Logger)

	router := NewBasicRouter()
	router.Use(Recover(opts.Logger), Logging(opts.Logger))
	router.Handle(http.MethodGet, "/health", healthHandler(db))
	router.Handler(auth)
	router.Handler(NewPlaylistHandler(playlists, auth, opts.Logger))

	return &Server{db: db, opts: opts, sessions: sessions, router: router, logger: opts.Logger}, nil
}

// Handler returns the root handler with all routes and middleware registered.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
//
// The expired session purge runs on its schedule alongside the listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if s.opts.PurgeSchedule != "" {
		g.Go(func() error {
			c := cron.New()
			if _, err := c.AddFunc(s.opts.PurgeSchedule, func() { s.PurgeSessions() }); err != nil {
				return fmt.Errorf("failed to schedule session purge: %w", err)
			}
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}

	return g.Wait()
}

// PurgeSessions deletes expired sessions and returns how many were removed.
func (s *Server) PurgeSessions() int64 {
	n, err := s.sessions.PurgeExpired(time.Now())
	if err != nil {
		s.logger.Error("session purge failed", "error", err)
		return 0
	}
	if n > 0 {
		s.logger.Info("purged expired sessions", "count", n)
	}
	return n
}

func healthHandler(db *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
