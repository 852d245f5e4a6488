// Package server exposes a document tree over the LNDP HTTP protocol and
// advertises it on the local network.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/joe/lndp/internal/logging"
	"github.com/joe/lndp/pkg/filesystem"
	"github.com/joe/lndp/pkg/protocol"
)

// DefaultPort is the port servers listen on unless configured otherwise.
const DefaultPort = 1234

// Exported variables.
var (
	ErrAlreadyStarted = errors.New("server already started")
	ErrNotStarted     = errors.New("server not started")
)

// Advertiser announces the server on the local network. The returned function
// withdraws the announcement.
type Advertiser interface {
	Advertise(ctx context.Context, name string, port int, useTLS bool) (func(), error)
}

// Config holds server configuration.
type Config struct {
	ServerName string
	// Host is the address to bind; empty binds all interfaces.
	Host string
	// Port 0 picks an ephemeral port; DefaultPort is applied by the CLI.
	Port     int
	Writable bool
	TLSCert  string
	TLSKey   string
	// AllowAnonymous accepts requests without a bearer token.
	AllowAnonymous bool
}

// UseTLS reports whether a certificate and key are configured.
func (c Config) UseTLS() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// Server serves one TreeProvider.
type Server struct {
	cfg        Config
	tree       filesystem.TreeProvider
	logger     *zap.Logger
	metrics    *Metrics
	advertiser Advertiser

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	unregister func()
	done       chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAdvertiser sets the advertiser used by Start.
func WithAdvertiser(advertiser Advertiser) Option {
	return func(s *Server) { s.advertiser = advertiser }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(s *Server) { s.metrics = metrics }
}

// New creates a server for tree.
func New(tree filesystem.TreeProvider, cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		tree:    tree,
		logger:  logging.Named("server"),
		metrics: NewMetrics(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the HTTP handler serving every endpoint under both "/" and
// protocol.PathPrefix.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	routes := []struct {
		method   string
		endpoint string
		handler  http.HandlerFunc
	}{
		{http.MethodGet, protocol.EndpointQueryDocument, s.handleQueryDocument},
		{http.MethodGet, protocol.EndpointQueryChildDocuments, s.handleQueryChildDocuments},
		{http.MethodGet, protocol.EndpointDocumentRead, s.handleDocumentRead},
		{http.MethodGet, protocol.EndpointDocumentReadThumb, s.handleDocumentReadThumb},
		{http.MethodGet, protocol.EndpointDocumentCreate, s.writable(s.handleDocumentCreate)},
		{http.MethodPost, protocol.EndpointDocumentAppend, s.writable(s.handleDocumentAppend)},
		{http.MethodGet, protocol.EndpointDocumentRename, s.writable(s.handleDocumentRename)},
	}

	for _, route := range routes {
		handler := s.metrics.middleware(strings.TrimPrefix(route.endpoint, "/"), route.handler)

		for _, prefix := range []string{"", protocol.PathPrefix} {
			mux.Handle(route.method+" "+prefix+route.endpoint, handler)
		}
	}

	mux.Handle("GET /metrics", s.metrics.Handler())

	var handler http.Handler = mux
	if !s.cfg.AllowAnonymous {
		handler = bearerAuth(handler)
	}

	return recoverPanics(s.logger, logging.Middleware(s.logger)(handler))
}

// Start listens, logs a summary of the share, serves in the background and
// advertises the service. Advertising failures are logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return ErrAlreadyStarted
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second, //nolint:mnd // Slowloris guard
	}
	s.done = make(chan struct{})

	s.logSummary()

	go s.serve(s.httpServer, listener, s.done)

	s.logger.Info("server started",
		zap.String("name", s.cfg.ServerName),
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.cfg.UseTLS()),
		zap.Bool("writable", s.cfg.Writable))

	if s.advertiser != nil {
		unregister, err := s.advertiser.Advertise(ctx, s.cfg.ServerName, s.Port(), s.cfg.UseTLS())
		if err != nil {
			s.logger.Warn("failed to advertise service", zap.Error(err))
		} else {
			s.unregister = unregister
		}
	}

	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Port returns the bound port, which differs from Config.Port when an
// ephemeral port was requested.
func (s *Server) Port() int {
	if s.listener == nil {
		return s.cfg.Port
	}

	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}

	return s.cfg.Port
}

// Stop force-closes the listener and every open connection, then withdraws
// the advertisement. Requests in flight fail.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		return ErrNotStarted
	}

	if s.unregister != nil {
		s.unregister()
		s.unregister = nil
	}

	err := s.httpServer.Close()
	<-s.done

	s.httpServer = nil
	s.listener = nil

	s.logger.Info("server stopped", zap.String("name", s.cfg.ServerName))

	if err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	return nil
}

func (s *Server) serve(server *http.Server, listener net.Listener, done chan<- struct{}) {
	defer close(done)

	var err error
	if s.cfg.UseTLS() {
		err = server.ServeTLS(listener, s.cfg.TLSCert, s.cfg.TLSKey)
	} else {
		err = server.Serve(listener)
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("server stopped unexpectedly", zap.Error(err))
	}
}

func (s *Server) logSummary() {
	summarizer, ok := s.tree.(filesystem.Summarizer)
	if !ok {
		return
	}

	summary, err := summarizer.Summary()
	if err != nil {
		s.logger.Warn("failed to summarize share", zap.Error(err))
		return
	}

	s.logger.Info("sharing folder",
		zap.Int("files", summary.Files),
		zap.Int("dirs", summary.Dirs),
		zap.String("size", humanize.IBytes(uint64(summary.Bytes)))) //nolint:gosec // Sizes are never negative
}

// bearerAuth rejects requests without an "Authorization: Bearer <token>"
// header. The token itself is not checked.
func bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recoverPanics turns a handler panic into a 500 so one bad request cannot
// take the server down.
func recoverPanics(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler { //nolint:errorlint,err113 // Sentinel panic value
					panic(rec)
				}

				logger.Error("handler panicked", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				w.Header().Set(protocol.ErrorHeader, protocol.ErrorIO)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
