// Package reconciler runs the periodic status sweep and the counter flush
// as background workers of the main process.
package reconciler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/boletera/boletera/internal/pkg/env"
	metrics "github.com/boletera/boletera/internal/pkg/metrics/counter"
	"github.com/boletera/boletera/internal/pkg/payments"
)

// Manager manages the reconciliation sweep and background tasks
type Manager struct {
	reconciler         *payments.Reconciler
	sweepTicker        *time.Ticker
	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global reconciliation manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// Configure sets the reconciler the sweep worker drives. Must be called
// before Start.
func (m *Manager) Configure(r *payments.Reconciler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconciler = r
}

// Start starts the sweep and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	if m.reconciler == nil {
		panic("reconciler manager not configured. Call Configure first.")
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Reconciler Manager] Starting background tasks")

	sweepInterval := 15 * time.Minute
	if v, err := strconv.Atoi(env.GetEnv("RECONCILE_SWEEP_INTERVAL", "")); err == nil && v > 0 {
		sweepInterval = time.Duration(v) * time.Minute
	}

	m.sweepTicker = time.NewTicker(sweepInterval)
	m.wg.Add(1)
	go m.sweepWorker(sweepInterval)

	// Counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	log.Info("[Reconciler Manager] Started successfully")
}

// Stop stops the background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Reconciler Manager] Stopping background tasks...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	log.Info("[Reconciler Manager] Stopped successfully")
}

// SweepNow runs one sweep pass synchronously, for the admin trigger.
func (m *Manager) SweepNow(ctx context.Context) payments.SweepStats {
	m.mu.Lock()
	r := m.reconciler
	m.mu.Unlock()
	if r == nil {
		return payments.SweepStats{}
	}
	return r.SweepPending(ctx)
}

// sweepWorker runs the periodic status reconciliation sweep
func (m *Manager) sweepWorker(interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[Reconciler Manager] Started sweep worker (interval: %s)", interval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[Reconciler Manager] Sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			log.Debug("[Reconciler Manager] Running pending payment sweep")
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			stats := m.reconciler.SweepPending(ctx)
			cancel()
			if stats.Errors > 0 {
				log.Warnf("[Reconciler Manager] Sweep finished with %d errors", stats.Errors)
			}
		}
	}
}

// counterFlushWorker periodically flushes outcome counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Reconciler Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[Reconciler Manager] Error flushing counters: %v", err)
			}
		}
	}
}
