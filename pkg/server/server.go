package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cascadegame/cascade/pkg/admission"
	"github.com/cascadegame/cascade/pkg/game"
	"github.com/cascadegame/cascade/pkg/highscore"
	"github.com/cascadegame/cascade/pkg/lobby"
	"github.com/cascadegame/cascade/pkg/middleware"
	"github.com/cascadegame/cascade/pkg/transport"
)

// Server accepts game clients over raw TCP and websocket, runs their
// sessions, and serves health and metrics endpoints.
type Server struct {
	config  *ServerConfig
	logger  *slog.Logger
	metrics *Metrics

	tracker  *admission.Tracker
	registry *lobby.Registry
	names    *nameSet
	scores   *highscore.Store

	trustedProxies *proxyMatcher
	upgrader       websocket.Upgrader
	handler        http.Handler

	clientID atomic.Uint64
	sessions sync.WaitGroup

	tcpListener net.Listener
	httpServer  *http.Server

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Server. reg receives the Prometheus collectors; pass
// prometheus.DefaultRegisterer outside tests.
func New(config *ServerConfig, reg prometheus.Registerer) *Server {
	config = config.withDefaults()
	logger := slog.Default().With("component", "server")

	s := &Server{
		config:         config,
		logger:         logger,
		names:          newNameSet(),
		scores:         highscore.NewStore(config.HighScorePath, slog.Default().With("component", "highscore")),
		trustedProxies: newProxyMatcher(config.TrustedProxies, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		closed: make(chan struct{}),
	}
	s.registry = lobby.NewRegistry(slog.Default().With("component", "lobby"), s.makeDriver)
	s.metrics = NewMetrics(reg, s.registry.Count)
	s.tracker = admission.NewTracker(config.Admission,
		slog.Default().With("component", "admission"), admission.NewMetrics(reg))
	s.handler = s.buildHandler(reg)
	return s
}

func (s *Server) makeDriver(g *game.Game) *game.Driver {
	recorder := &countingRecorder{scores: s.scores, finished: s.metrics.GamesFinished}
	return game.NewDriver(g, recorder,
		slog.Default().With("component", "driver"), s.metrics.TickDuration)
}

// countingRecorder counts finished games on the way to the score file.
// The driver records each game exactly once.
type countingRecorder struct {
	scores   *highscore.Store
	finished prometheus.Counter
}

func (r *countingRecorder) Record(ctx context.Context, result game.Result) (int, error) {
	r.finished.Inc()
	return r.scores.Record(ctx, result)
}

// Registry returns the lobby registry.
func (s *Server) Registry() *lobby.Registry { return s.registry }

// Run starts both listeners and blocks until shutdown or a fatal error.
func (s *Server) Run() error {
	tcpLn, err := net.Listen("tcp", s.config.TCPAddress)
	if err != nil {
		return err
	}
	s.tcpListener = tcpLn
	s.logger.Info("listening for raw TCP connections", "address", tcpLn.Addr().String())

	s.httpServer = &http.Server{
		Addr:    s.config.HTTPAddress,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.acceptLoop(tcpLn)
	}()
	go func() {
		s.logger.Info("listening for websocket connections", "address", s.config.HTTPAddress)
		errCh <- s.httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	case <-shutdown:
		s.logger.Info("shutting down")
		return s.Shutdown(context.Background())
	case <-s.closed:
		return nil
	}
}

// Handler returns the HTTP surface: websocket upgrade, health check and
// metrics, with tracing and request metrics middleware. The handler is
// built once so the middleware collectors register once per server.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) buildHandler(reg prometheus.Registerer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.OpenTelemetry())
	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Shutdown stops the listeners and waits for sessions to finish, up to
// the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.closeOnce.Do(func() { close(s.closed) })

	if s.tcpListener != nil {
		_ = s.tcpListener.Close()
	}
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("shutdown timed out waiting for sessions")
	}

	s.logger.Info("server shutdown complete")
	return err
}

func (s *Server) acceptLoop(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		tcpConn, ok := conn.(*net.TCPConn)
		if !ok {
			conn.Close()
			continue
		}
		go s.handleTCP(tcpConn)
	}
}

func (s *Server) handleTCP(conn *net.TCPConn) {
	tc, err := transport.NewTCPConn(conn)
	if err != nil {
		s.logger.Warn("tcp setup failed", "error", err)
		return
	}
	s.startSession(tc, "tcp")
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	addr, err := clientAddrFromRequest(r, s.trustedProxies)
	if err != nil {
		s.logger.Warn("rejecting websocket connection", "error", err)
		http.Error(w, "cannot determine client address", http.StatusBadRequest)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	s.startSession(transport.NewWSConn(wsConn, addr), "websocket")
}

// startSession admits the connection and runs a session for it. A
// rejected connection gets a short explanation and is closed.
func (s *Server) startSession(conn transport.Conn, transportName string) {
	token, err := s.tracker.Admit(conn.RemoteIP())
	if err != nil {
		_ = conn.Write([]byte("Sorry, there are too many connections from your IP address :(\r\n"))
		_ = conn.Close()
		return
	}

	id := s.clientID.Add(1)
	s.logger.Info("new connection", "client_id", id, "transport", transportName)

	s.metrics.SessionsTotal.WithLabelValues(transportName).Inc()
	s.metrics.ActiveSessions.Inc()
	s.sessions.Add(1)

	sess := newSession(id, s, conn, token)
	go sess.run()
}

func (s *Server) sessionDone() {
	s.sessions.Done()
}
