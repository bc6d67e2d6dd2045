// Package server exposes the gateway over HTTP: direct tool invocation,
// registry introspection, and the thread-based chat surface.
package server

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-tel/mcp-gateway/internal/chat"
	"github.com/ai-tel/mcp-gateway/internal/thread"
	"github.com/ai-tel/mcp-gateway/internal/tool"
)

// Config holds server configuration.
type Config struct {
	Addr string // listen address, e.g. ":3100"
}

// Server is the gateway HTTP server.
type Server struct {
	config      Config
	registry    *tool.Registry
	dispatcher  *tool.Dispatcher
	threads     *thread.Store
	orch        *chat.Orchestrator
	chatEnabled bool
	baseCtx     context.Context
	cancel      context.CancelFunc
	httpSrv     *http.Server
	log         zerolog.Logger
}

// New creates a Server wired to the given registry, dispatcher, thread store
// and orchestrator. chatEnabled gates the chat surface (no upstream API key
// means chat requests fail, but the rest of the gateway works).
func New(cfg Config, registry *tool.Registry, dispatcher *tool.Dispatcher, threads *thread.Store, orch *chat.Orchestrator, chatEnabled bool, log zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:      cfg,
		registry:    registry,
		dispatcher:  dispatcher,
		threads:     threads,
		orch:        orch,
		chatEnabled: chatEnabled,
		baseCtx:     ctx,
		cancel:      cancel,
		log:         log,
	}

	mux := http.NewServeMux()

	// Go 1.22+ method+pattern routing. Static chat routes must be
	// registered alongside the {threadId} patterns; the mux prefers the
	// more specific literal match.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleTools)
	mux.HandleFunc("GET /servers", s.handleServers)
	mux.HandleFunc("POST /mcp/tools/call", s.handleToolCall)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /chat/status", s.handleChatStatus)
	mux.HandleFunc("GET /chat/threads", s.handleListThreads)
	mux.HandleFunc("POST /chat/{threadId}/messages", s.handleThreadMessage)
	mux.HandleFunc("GET /chat/{threadId}/messages", s.handleThreadHistory)
	mux.HandleFunc("GET /chat/{threadId}/status", s.handleThreadStatus)
	mux.HandleFunc("DELETE /chat/{threadId}", s.handleDeleteThread)

	s.httpSrv = &http.Server{
		Handler:      s.logRequests(csrfProtect(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	return s
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		s.log.Info().Str("signal", sig.String()).Msg("shutting down")
		s.Shutdown()
	}()

	s.log.Info().Str("addr", s.config.Addr).Msg("gateway listening")
	s.httpSrv.Addr = s.config.Addr
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = s.httpSrv.Shutdown(shutdownCtx)
	s.cancel()
}

// csrfProtect rejects cross-origin mutating requests. Browsers set the
// Origin header on cross-origin requests; CLI and programmatic callers omit
// it or use a localhost origin.
func csrfProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			origin := r.Header.Get("Origin")
			if origin != "" {
				u, err := url.Parse(origin)
				if err != nil {
					http.Error(w, `{"error":"invalid Origin header"}`, http.StatusForbidden)
					return
				}
				host := u.Hostname()
				if host != "localhost" && host != "127.0.0.1" && host != "::1" {
					http.Error(w, `{"error":"cross-origin request blocked"}`, http.StatusForbidden)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
