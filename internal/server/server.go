// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects stores, adapters,
// handlers, and middleware. Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - Which execution backend serves which language
// - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — read env, build Config, Start)
//
// DEPENDENCY INJECTION FLOW:
// main.go builds a Config from the environment and hands it to New, which
// assembles: TokenService + PasswordService → session.Store,
// filestore.Store, adapters → executor.Dispatcher, and finally the
// handlers. This is the "composition root" pattern — all dependencies are
// wired in one place rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/mini-ide/internal/auth"
	"github.com/sakif/mini-ide/internal/executor"
	"github.com/sakif/mini-ide/internal/executor/gcc"
	"github.com/sakif/mini-ide/internal/executor/piston"
	"github.com/sakif/mini-ide/internal/executor/wasm"
	"github.com/sakif/mini-ide/internal/filestore"
	"github.com/sakif/mini-ide/internal/handler"
	"github.com/sakif/mini-ide/internal/middleware"
	"github.com/sakif/mini-ide/internal/model"
	"github.com/sakif/mini-ide/internal/session"
)

// Config holds server configuration.
// Using a struct for config (instead of individual parameters) makes it easy
// to add new options without changing function signatures, and keeps the
// env-var reading in main.go in one obvious place.
type Config struct {
	Port      int
	DataDir   string // where users.json lives
	SaveDir   string // where saved files live
	StaticDir string // optional: serve a built frontend from here

	TokenSecret string
	RateMax     int
	RateWindow  time.Duration

	// AllowedOrigin enables CORS for one browser origin when set. Empty
	// means same-origin only (the static dir serves the client itself).
	AllowedOrigin string

	// CPPBackend selects the C++ execution backend: "piston" (remote API,
	// the default), "gcc" (local toolchain), or "wasm" (embedded
	// interpreter module at CPPWASM).
	CPPBackend string
	PistonURL  string
	Compiler   string // compiler binary for the gcc backend
	CPPWASM    string // .wasm module for CPPBackend=wasm

	// PythonWASM switches Python to the embedded interpreter at this path.
	// Empty keeps Python on the remote API.
	PythonWASM string
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server may own a wazero runtime (an embedded interpreter keeps a
// compiled module in memory). Shutdown closes it after the HTTP drain so
// in-flight executions finish first.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	closers []io.Closer
}

// New creates a new Server with the given config.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}

	if err := s.setupRoutes(); err != nil {
		s.closeAll()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware, stores, adapters and route
// handlers.
//
// ROUTE STRUCTURE:
// GET    /api/health            → liveness + version
// POST   /api/register          → create account, auto-login (201)
// POST   /api/login             → issue session token
// POST   /api/logout            → revoke token (idempotent)
// POST   /api/verify            → is this token a live session?
// POST   /api/execute           → run code ({language, code, stdin})
// POST   /api/compile/cpp       → legacy C++ endpoint
// POST   /api/save              → save a file (token in body)
// GET    /api/files             → list saved files
// GET    /api/file/{filename}   → read one saved file
// DELETE /api/file/{filename}   → delete (Bearer token required)
// GET    /*                     → static frontend (only when configured)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers; the login rate
//    limiter keys on this, so it must run before any handler
// 3. Logger — logs each request with timing info
// 4. Recoverer — catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	if s.config.AllowedOrigin != "" {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{s.config.AllowedOrigin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// === Stores ===
	issuer, err := auth.NewTokenService(s.config.TokenSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	sessions, err := session.New(session.Config{
		DataDir:    s.config.DataDir,
		RateMax:    s.config.RateMax,
		RateWindow: s.config.RateWindow,
	}, issuer, auth.NewPasswordService(), s.logger)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}

	files, err := filestore.New(s.config.SaveDir, s.logger)
	if err != nil {
		return fmt.Errorf("opening file store: %w", err)
	}

	// === Execution backends ===
	dispatcher, err := s.buildDispatcher()
	if err != nil {
		return fmt.Errorf("building dispatcher: %w", err)
	}

	// === Handlers ===
	authHandler := handler.NewAuthHandler(sessions, s.logger)
	fileHandler := handler.NewFileHandler(files, sessions, s.logger)
	execHandler := handler.NewExecuteHandler(dispatcher, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", handler.HandleHealth)

		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Post("/verify", authHandler.HandleVerify)

		r.Post("/execute", execHandler.HandleExecute)
		r.Post("/compile/cpp", execHandler.HandleCompileCPP)

		r.Post("/save", fileHandler.HandleSave)
		r.Get("/files", fileHandler.HandleList)
		r.Get("/file/{filename}", fileHandler.HandleRead)

		// Delete is the one route guarded by a bearer header; the others
		// carry their token (if any) in the body.
		r.With(auth.RequireToken(sessions)).Delete("/file/{filename}", fileHandler.HandleDelete)
	})

	// === Static frontend (optional) ===
	// When a built client directory is configured, serve it at the root so
	// a single process hosts API and UI the way the dev deployment does.
	if s.config.StaticDir != "" {
		fileServer := http.FileServer(http.Dir(s.config.StaticDir))
		s.router.Handle("/*", fileServer)
	}

	return nil
}

// buildDispatcher creates the language → adapter registry from config.
//
// BACKEND SELECTION:
// C++ has three interchangeable backends behind the Adapter interface; the
// deployment picks one with CPP_BACKEND. Python defaults to the remote API
// and switches to the embedded interpreter when PYTHON_WASM points at a
// module. Every backend gets registered behind the same Dispatcher, so the
// handlers never know which one is live.
func (s *Server) buildDispatcher() (*executor.Dispatcher, error) {
	d := executor.NewDispatcher(s.logger)

	remote := piston.New(s.config.PistonURL, s.logger)

	switch s.config.CPPBackend {
	case "", "piston":
		d.Register(model.LanguageCPP, remote)
	case "gcc":
		d.Register(model.LanguageCPP, gcc.New(gcc.Config{Compiler: s.config.Compiler}, s.logger))
	case "wasm":
		if s.config.CPPWASM == "" {
			return nil, fmt.Errorf("CPP_BACKEND=wasm requires a module path")
		}
		a := wasm.New(wasm.Config{ModulePath: s.config.CPPWASM, Name: "clang"}, s.logger)
		s.closers = append(s.closers, a)
		d.Register(model.LanguageCPP, a)
	default:
		return nil, fmt.Errorf("unknown C++ backend %q", s.config.CPPBackend)
	}

	if s.config.PythonWASM != "" {
		a := wasm.New(wasm.Config{ModulePath: s.config.PythonWASM, Name: "python"}, s.logger)
		s.closers = append(s.closers, a)
		d.Register(model.LanguagePython, a)
	} else {
		d.Register(model.LanguagePython, remote)
	}

	return d, nil
}

// closeAll releases adapter-held resources (wazero runtimes).
func (s *Server) closeAll() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("closing adapter", slog.String("error", err.Error()))
		}
	}
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout — a remote compile
//    or a timed-out run can legitimately take several seconds)
// 3. Close adapter resources (the embedded interpreter runtime)
func (s *Server) Start() error {
	defer s.closeAll()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
		// WriteTimeout must cover a full execution round-trip; a remote
		// compile plus a 5-10s run budget fits comfortably in 60s.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("cppBackend", s.config.CPPBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
