package fiadosync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SyncService is the synchronization reconciliation engine: it merges
// client-submitted mutation batches into the canonical store and rebuilds
// per-user snapshots. The store handle is injected at construction; there is
// no ambient global state.
type SyncService struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	config *ServiceConfig

	mu     sync.RWMutex
	closed bool
}

// ServiceConfig holds configuration for the sync service.
type ServiceConfig struct {
	AppName string // Application name for connection tracking/logging

	DisableSchemaInit bool // Skip startup table creation (tests manage their own schema)

	LogStageTimings bool                 // Log per-stage timings at debug level
	StageMetrics    StageMetricsRecorder // Optional stage metrics sink
}

// NewSyncService creates a new sync service instance from an existing pool.
// Unless disabled, the required tables are created on first use within a
// single transaction.
func NewSyncService(pool *pgxpool.Pool, config *ServiceConfig, logger *slog.Logger) (*SyncService, error) {
	if pool == nil {
		return nil, ErrStoreUnavailable
	}
	if config == nil {
		config = &ServiceConfig{AppName: "mifiado-sync"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	service := &SyncService{
		pool:   pool,
		logger: logger,
		config: config,
	}

	if !config.DisableSchemaInit {
		ctx := context.Background()
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			return service.initializeSchemaInTx(ctx, tx)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sync service: %w", err)
		}
	}

	return service, nil
}

// Close shuts down the sync service. It does NOT close the pool - the caller
// owns the pool lifecycle. Safe to call multiple times.
func (s *SyncService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.logger.Debug("Shutting down sync service")
	s.closed = true
	return nil
}

// Pool returns the underlying database connection pool.
func (s *SyncService) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *SyncService) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errors.New("sync service has been closed")
	}
	return nil
}

// ProcessPush applies one push batch: upserts parent-first, then deletions
// child-first, all inside a single transaction. Individual record failures
// are isolated with SAVEPOINTs and reported per record; they never abort the
// batch. Re-submitting the same batch converges to the same stored state.
func (s *SyncService) ProcessPush(ctx context.Context, userID string, req *SyncRequest) (*SyncResponse, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, NewValidationError("userId")
	}

	received := KindCounts{
		Clientes:    len(req.Clientes),
		Productos:   len(req.Productos),
		Movimientos: len(req.Movimientos),
		Pedidos:     len(req.Pedidos),
	}

	total := s.stageStart()
	outcome := &pushOutcome{}

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadWrite}, func(tx pgx.Tx) error {
		// Bound lock waits during concurrent device syncs for the same user.
		_, _ = tx.Exec(ctx, "SET LOCAL lock_timeout = '3s'")

		inBatch := buildBatchIndex(req)

		upStart := s.stageStart()
		if err := s.processUpserts(ctx, tx, userID, req, inBatch, outcome); err != nil {
			return fmt.Errorf("failed to process upserts: %w", err)
		}
		s.observeStage(ctx, MetricsOpPush, MetricsStageUpserts, upStart,
			received.Clientes+received.Productos+received.Movimientos+received.Pedidos, false)

		delStart := s.stageStart()
		if err := s.processDeletes(ctx, tx, userID, &req.Deleted, outcome); err != nil {
			return fmt.Errorf("failed to process deletes: %w", err)
		}
		s.observeStage(ctx, MetricsOpPush, MetricsStageDeletes, delStart,
			len(req.Deleted.Clientes)+len(req.Deleted.Productos)+len(req.Deleted.Movimientos)+len(req.Deleted.Pedidos), false)

		return nil
	})
	if err != nil {
		s.observeStage(ctx, MetricsOpPush, MetricsStageTotal, total, 0, true)
		return nil, fmt.Errorf("failed to process push transaction: %w", err)
	}
	s.observeStage(ctx, MetricsOpPush, MetricsStageTotal, total, 0, false)

	message := "Sincronización completada"
	if !outcome.fullyApplied() {
		message = fmt.Sprintf("Sincronización completada con %d registros omitidos", len(outcome.issues))
	}

	s.logger.Info("Push processed",
		"user_id", userID,
		"received_clientes", received.Clientes,
		"received_productos", received.Productos,
		"received_movimientos", received.Movimientos,
		"received_pedidos", received.Pedidos,
		"issues", len(outcome.issues),
	)

	return &SyncResponse{
		Success:  true,
		Message:  message,
		Received: received,
		Applied:  outcome.applied,
		Issues:   outcome.issues,
	}, nil
}
