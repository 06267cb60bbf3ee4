// Package server runs the WebSocket control-plane surface: it accepts
// controller connections, authenticates them, enforces the task
// concurrency cap, and dispatches inbound task/ping/config_query frames to
// the tool executor and stats/protocol layers.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marcosnunesmbs/smith/internal/audit"
	"github.com/marcosnunesmbs/smith/internal/browser"
	"github.com/marcosnunesmbs/smith/internal/config"
	"github.com/marcosnunesmbs/smith/internal/protocol"
	"github.com/marcosnunesmbs/smith/internal/shell"
	"github.com/marcosnunesmbs/smith/internal/telemetry"
	"github.com/marcosnunesmbs/smith/internal/tools"
)

const (
	authHeader            = "X-Smith-Auth"
	protocolVersionHeader = "X-Smith-Protocol-Version"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server owns every long-lived dependency the agent needs to serve
// connections: the tool registry/executor, the task limiter, the
// connection hub, the optional audit trail, and tracing.
type Server struct {
	cfg    config.AgentConfig
	logger *slog.Logger

	sandbox  *tools.Sandbox
	shell    *shell.Adapter
	browser  *browser.Manager
	executor *tools.Executor

	limiter   *TaskLimiter
	hub       *Hub
	telemetry *telemetry.Provider
	auditDB   *audit.Store

	httpSrv *http.Server
	seq     atomic.Int64
}

// New builds a Server from cfg. It does not start listening; call Serve
// for that. browserCacheDir comes from a config.Home-derived path, and
// auditDBPath from audit.db_path or its config.Home-derived default, so
// callers outside internal/config never hardcode the layout.
func New(cfg config.AgentConfig, logger *slog.Logger, browserCacheDir, auditDBPath string) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sandbox, err := tools.NewSandbox(cfg.SandboxDir)
	if err != nil {
		return nil, fmt.Errorf("server: build sandbox: %w", err)
	}

	registry := tools.NewRegistry()
	tools.RegisterAll(registry)
	built := registry.Build(sandbox, tools.CategoryEnables{
		Filesystem: cfg.Categories.Filesystem,
		Shell:      cfg.Categories.Shell,
		Git:        cfg.Categories.Git,
		Network:    cfg.Categories.Network,
	})

	executor := tools.NewExecutor(built, logger)

	var auditDB *audit.Store
	if auditDBPath != "" {
		auditDB, err = audit.Open(auditDBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("server: open audit trail: %w", err)
		}
		executor.SetAudit(auditDB)
	}

	provider, err := telemetry.Init(context.Background(), cfg.Name, telemetry.Config{
		Endpoint: cfg.OTel.Endpoint,
		Insecure: cfg.OTel.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("server: init telemetry: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		sandbox:   sandbox,
		shell:     shell.NewAdapter(),
		browser:   browser.NewManager(browserCacheDir),
		executor:  executor,
		limiter:   NewTaskLimiter(cfg.MaxConcurrentTasks),
		hub:       NewHub(),
		telemetry: provider,
		auditDB:   auditDB,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealthz)
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	return s, nil
}

// toolNames reports every tool name currently registered, used for the
// register frame's capability list.
func (s *Server) toolNames() []string {
	return s.executor.ToolNames()
}

// enabledCategoryNames lists every category currently loaded: the four
// toggleable ones when enabled, plus the always-on four, for the
// config_report reply.
func (s *Server) enabledCategoryNames() []string {
	names := []string{
		string(tools.CategoryProcesses),
		string(tools.CategoryPackages),
		string(tools.CategorySystem),
		string(tools.CategoryBrowser),
	}
	if s.cfg.Categories.Filesystem {
		names = append(names, string(tools.CategoryFilesystem))
	}
	if s.cfg.Categories.Shell {
		names = append(names, string(tools.CategoryShell))
	}
	if s.cfg.Categories.Git {
		names = append(names, string(tools.CategoryGit))
	}
	if s.cfg.Categories.Network {
		names = append(names, string(tools.CategoryNetwork))
	}
	return names
}

// newToolContext derives a per-task tools.Context from the server's
// shared dependencies. Built fresh per call since Timeout and the
// embedded context.Context vary per task.
func (s *Server) newToolContext(ctx context.Context) tools.Context {
	return tools.Context{
		Context:     ctx,
		SandboxDir:  s.sandbox.Root(),
		WorkDir:     s.sandbox.Root(),
		ReadOnly:    s.cfg.ReadonlyMode,
		AllowedCmds: s.cfg.AllowedShellCommands,
		Timeout:     s.cfg.TaskTimeout(),
		Categories: tools.CategoryEnables{
			Filesystem: s.cfg.Categories.Filesystem,
			Shell:      s.cfg.Categories.Shell,
			Git:        s.cfg.Categories.Git,
			Network:    s.cfg.Categories.Network,
		},
		Sandbox:     s.sandbox,
		Shell:       s.shell,
		Browser:     s.browser,
	}
}

// handleWebSocket authenticates the incoming request against cfg.AuthToken
// (constant-time compare, since this is a bearer credential) and upgrades
// it to a WebSocket connection on success.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(authHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if v := r.Header.Get(protocolVersionHeader); v != "" && v != fmt.Sprintf("%d", protocol.ProtocolVersion) {
		http.Error(w, "protocol version mismatch", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	id := fmt.Sprintf("%s-%d", r.RemoteAddr, s.seq.Add(1))
	c := newConnection(id, r.RemoteAddr, conn, s)
	s.hub.Register(id, c)

	connCtx, span := s.telemetry.StartConnection(context.Background(), r.RemoteAddr)
	s.logger.Info("connection accepted", "remote_addr", r.RemoteAddr, "id", id)

	go func() {
		defer span.End()
		c.run(connCtx)
	}()
}

// handleHealthz reports liveness and the current in-flight/connection
// counts, for a load balancer or supervisor probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","connections":%d,"in_flight_tasks":%d,"max_concurrent_tasks":%d}`,
		s.hub.Count(), s.limiter.InFlight(), s.limiter.Max())
}

// Serve starts accepting connections and blocks until ctx is cancelled or
// the listener fails. It wraps the HTTP server in TLS when both TLSCert
// and TLSKey are configured. The idle sweeper runs alongside it and is
// torn down on the same shutdown path.
func (s *Server) Serve(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.runIdleSweeper(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
			err = s.httpSrv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown stops accepting new connections, closes every open connection
// with a going-away frame, and releases the browser and audit handles.
// Idempotent: safe to call once per Serve invocation.
func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown did not complete cleanly", "error", err)
	}
	s.hub.CloseAll()
	s.browser.Close()
	if s.auditDB != nil {
		_ = s.auditDB.Close()
	}
	_ = s.telemetry.Shutdown(shutdownCtx)
	return nil
}

// runIdleSweeper periodically evicts connections idle past IdleTimeout.
// A zero IdleTimeoutMS disables eviction entirely. The tick interval is
// capped at one minute so a very long idle timeout doesn't leave
// connections lingering far past their budget between sweeps.
func (s *Server) runIdleSweeper(ctx context.Context) {
	idleTimeout := s.cfg.IdleTimeout()
	if idleTimeout <= 0 {
		return
	}

	interval := idleTimeout
	if interval > time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepIdle(idleTimeout)
		}
	}
}

func (s *Server) sweepIdle(idleTimeout time.Duration) {
	s.hub.mu.RLock()
	stale := make([]*Connection, 0)
	for _, c := range s.hub.conns {
		if conn, ok := c.(*Connection); ok && conn.idleFor() >= idleTimeout {
			stale = append(stale, conn)
		}
	}
	s.hub.mu.RUnlock()

	for _, conn := range stale {
		s.logger.Info("evicting idle connection", "remote_addr", conn.remoteAddr, "idle_for", conn.idleFor())
		conn.CloseGoingAway()
	}
}
