// Package server exposes the report service over HTTP and WebSocket.
package server

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/threatbrief/am"
	"github.com/teranos/threatbrief/generator"
	"github.com/teranos/threatbrief/logger"
	"github.com/teranos/threatbrief/metrics"
	"github.com/teranos/threatbrief/server/wslogs"
)

// ServerState tracks the lifecycle for health reporting and draining
type ServerState int32

const (
	ServerStateRunning ServerState = iota
	ServerStateDraining
	ServerStateStopped
)

// ReportServer serves report generation for one configured Service
type ReportServer struct {
	cfg        *am.Config
	service    *generator.Service
	metrics    *metrics.Collector // nil when metrics are disabled
	logger     *zap.SugaredLogger
	mux        *http.ServeMux
	upgrader   websocket.Upgrader
	httpServer *http.Server
	state      atomic.Int32
	streams    sync.WaitGroup // open WebSocket runs, waited on during shutdown
	logHub     *wslogs.Hub    // nil: stream clients get no run logs
}

// Option configures a ReportServer
type Option func(*ReportServer)

// WithLogHub ships each streamed run's log lines to its client. The hub must
// be fed by a wslogs.RunCore on the service's logger.
func WithLogHub(h *wslogs.Hub) Option {
	return func(s *ReportServer) { s.logHub = h }
}

// New creates a server. collector may be nil.
func New(cfg *am.Config, service *generator.Service, collector *metrics.Collector, log *zap.SugaredLogger, opts ...Option) *ReportServer {
	if log == nil {
		log = logger.ComponentLogger("server")
	}
	s := &ReportServer{
		cfg:     cfg,
		service: service,
		metrics: collector,
		logger:  log,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupHTTPRoutes()
	return s
}

// Handler returns the routed handler, for tests and for embedding
func (s *ReportServer) Handler() http.Handler {
	return s.mux
}
