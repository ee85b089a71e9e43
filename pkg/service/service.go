// Package service provides the service shell (C8): the start/stop lifecycle
// wrapping the acceptor, registry, and metrics the host supervisor drives.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/andy-yx-chen/leveldb-win/internal/config"
	"github.com/andy-yx-chen/leveldb-win/internal/logger"
	"github.com/andy-yx-chen/leveldb-win/internal/metrics"
	"github.com/andy-yx-chen/leveldb-win/internal/registry"
	"github.com/andy-yx-chen/leveldb-win/internal/server"
	"github.com/andy-yx-chen/leveldb-win/internal/store"
)

// Service owns the registry and acceptor for one run of the server. Start
// is idempotent: calling it while already running tears down and replaces
// the previous acceptor (§4.8). Stop is idempotent via sync.Once.
type Service struct {
	cfg *config.Config

	mu       sync.Mutex
	acceptor *server.Acceptor
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce *sync.Once
}

// New constructs a Service bound to cfg. Nothing is opened or bound until
// Start is called.
func New(cfg *config.Config) *Service {
	return &Service{cfg: cfg}
}

// Start tears down any previous acceptor (idempotent per §4.8), bootstraps
// the registry from cfg.DataDir, installs a fresh acceptor, and returns
// once it is listening. It returns an error only for startup failures
// (§7 "Startup errors ... fatal").
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.acceptor != nil {
		s.mu.Unlock()
		s.Stop()
		s.mu.Lock()
	}

	engineOpts := store.LoadEngineOptions(s.cfg.EngineConfigPath)
	reg, err := registry.New(s.cfg.DataDir, engineOpts)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("initialize registry: %w", err)
	}

	var m metrics.Metrics = metrics.Noop()
	if s.cfg.Metrics.Enabled {
		m = metrics.NewPrometheusMetrics(prometheus.DefaultRegisterer)
	}

	acceptor := server.NewAcceptor(reg, m, s.cfg.Workers)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.acceptor = acceptor
	s.cancel = cancel
	s.done = done
	s.stopOnce = &sync.Once{}
	s.mu.Unlock()

	ready := make(chan error, 1)
	go func() {
		defer close(done)
		ln, err := acceptor.Listen(s.cfg.ListenPort)
		ready <- err
		if err != nil {
			return
		}
		_ = acceptor.Serve(runCtx, ln)
	}()

	if err := <-ready; err != nil {
		return fmt.Errorf("start acceptor: %w", err)
	}

	logger.Info("service started", "port", s.cfg.ListenPort, "data_dir", s.cfg.DataDir, "workers", s.cfg.Workers)
	return nil
}

// Stop closes the acceptor and waits up to cfg.ShutdownGrace for in-flight
// connections to finish their current frame. A second Stop is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	acceptor := s.acceptor
	cancel := s.cancel
	done := s.done
	once := s.stopOnce
	s.mu.Unlock()

	if acceptor == nil || once == nil {
		return
	}

	once.Do(func() {
		if cancel != nil {
			cancel()
		}
		acceptor.Stop()

		select {
		case <-done:
		case <-time.After(s.cfg.ShutdownGrace):
			logger.Warn("shutdown grace period elapsed with connections still active")
		}
		logger.Info("service stopped")
	})

	s.mu.Lock()
	s.acceptor = nil
	s.mu.Unlock()
}
