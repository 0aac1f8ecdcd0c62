// Package main is the entry point for the mini-IDE server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal — its job is to:
// 1. Read configuration (from env vars, flags, or config files)
// 2. Create dependencies (logger, secrets, etc.)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
// This separation makes the app testable and its components reusable.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/sakif/mini-ide/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	// slog.New creates a structured logger. slog.NewTextHandler outputs human-readable logs.
	// In production, you'd use LevelInfo or LevelWarn to reduce noise.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. READ CONFIGURATION ===
	// Env vars with defaults — simple and standard. For a larger app you'd
	// reach for a config library, but this surface is small enough to read
	// directly.
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dataDir := envOr("DATA_DIR", "data")
	saveDir := envOr("SAVE_DIR", "saved_files")
	staticDir := os.Getenv("STATIC_DIR") // empty → no frontend serving

	// === 3. TOKEN SECRET ===
	// TOKEN_SECRET signs session tokens. Use:
	//   TOKEN_SECRET=$(openssl rand -hex 32)
	// If unset we generate an ephemeral one so the server still runs, but
	// every restart then invalidates all sessions AND any horizontally
	// scaled instance would disagree about signatures. Fine for dev only.
	secret := os.Getenv("TOKEN_SECRET")
	if secret == "" {
		secret = randomSecret()
		logger.Warn("TOKEN_SECRET not set — using an ephemeral secret; sessions will not survive restarts")
	}

	// === 4. LOGIN RATE LIMIT ===
	rateMax := 0 // 0 → session store default (5)
	if v := os.Getenv("LOGIN_RATE_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			logger.Error("invalid LOGIN_RATE_MAX value", slog.String("value", v))
			os.Exit(1)
		}
		rateMax = n
	}

	var rateWindow time.Duration // 0 → session store default (60s)
	if v := os.Getenv("LOGIN_RATE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid LOGIN_RATE_WINDOW value", slog.String("value", v))
			os.Exit(1)
		}
		rateWindow = d
	}

	// === 5. CREATE AND START THE SERVER ===
	cfg := server.Config{
		Port:          port,
		DataDir:       dataDir,
		SaveDir:       saveDir,
		StaticDir:     staticDir,
		TokenSecret:   secret,
		RateMax:       rateMax,
		RateWindow:    rateWindow,
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		CPPBackend:    os.Getenv("CPP_BACKEND"), // empty → piston
		PistonURL:     os.Getenv("PISTON_URL"),  // empty → public endpoint
		Compiler:      os.Getenv("GXX_PATH"),    // empty → g++ from PATH
		CPPWASM:       os.Getenv("CPP_WASM"),
		PythonWASM:    os.Getenv("PYTHON_WASM"), // empty → remote API
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// envOr reads an env var with a fallback default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// randomSecret generates a 32-byte hex secret for dev runs without a
// configured TOKEN_SECRET.
func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform is broken; nothing
		// sensible to do but stop.
		panic(err)
	}
	return hex.EncodeToString(b)
}
