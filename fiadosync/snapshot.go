package fiadosync

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ProcessSnapshot reconstructs the full current state of one user's
// clientes, productos, movimientos and pedidos, shaped for client
// consumption. Read-only: absent timestamps are synthesized in the response,
// never written back. Every kind is filtered by the owning user id with
// bound parameters - tenant isolation is uniform across the four kinds.
func (s *SyncService) ProcessSnapshot(ctx context.Context, userID string) (*SnapshotData, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, NewValidationError("userId")
	}

	start := s.stageStart()
	data := &SnapshotData{
		Clientes:    []ClienteOut{},
		Productos:   []ProductoOut{},
		Movimientos: []MovimientoOut{},
		Pedidos:     []PedidoOut{},
	}
	now := time.Now()

	if err := s.snapshotClientes(ctx, userID, data); err != nil {
		s.observeStage(ctx, MetricsOpSnapshot, MetricsStageSnapshotFetch, start, 0, true)
		return nil, err
	}
	if err := s.snapshotProductos(ctx, userID, now, data); err != nil {
		s.observeStage(ctx, MetricsOpSnapshot, MetricsStageSnapshotFetch, start, 0, true)
		return nil, err
	}
	if err := s.snapshotMovimientos(ctx, userID, now, data); err != nil {
		s.observeStage(ctx, MetricsOpSnapshot, MetricsStageSnapshotFetch, start, 0, true)
		return nil, err
	}
	if err := s.snapshotPedidos(ctx, userID, now, data); err != nil {
		s.observeStage(ctx, MetricsOpSnapshot, MetricsStageSnapshotFetch, start, 0, true)
		return nil, err
	}

	count := len(data.Clientes) + len(data.Productos) + len(data.Movimientos) + len(data.Pedidos)
	s.observeStage(ctx, MetricsOpSnapshot, MetricsStageSnapshotFetch, start, count, false)

	// Record counts only - never echo payloads into logs.
	s.logger.Info("Snapshot assembled",
		"user_id", userID,
		"clientes", len(data.Clientes),
		"productos", len(data.Productos),
		"movimientos", len(data.Movimientos),
		"pedidos", len(data.Pedidos),
	)

	return data, nil
}

func (s *SyncService) snapshotClientes(ctx context.Context, userID string, data *SnapshotData) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, nombre, telefono, correo, user_id
		FROM clientes
		WHERE user_id = @user_id
		ORDER BY id`,
		pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to fetch clientes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c ClienteOut
		var owner string
		if err := rows.Scan(&c.ID, &c.Nombre, &c.Telefono, &c.Correo, &owner); err != nil {
			return fmt.Errorf("failed to scan cliente: %w", err)
		}
		c.UserID = coalesce(owner, userID)
		data.Clientes = append(data.Clientes, c)
	}
	return rows.Err()
}

func (s *SyncService) snapshotProductos(ctx context.Context, userID string, now time.Time, data *SnapshotData) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, cliente_id, nombre, descripcion, fecha_creacion, user_id
		FROM productos
		WHERE user_id = @user_id
		ORDER BY id`,
		pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to fetch productos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p ProductoOut
		var owner string
		if err := rows.Scan(&p.ID, &p.ClienteID, &p.Nombre, &p.Descripcion, &p.FechaCreacion, &owner); err != nil {
			return fmt.Errorf("failed to scan producto: %w", err)
		}
		p.UserID = coalesce(owner, userID)
		p.FechaCreacion = synthesizeTimestamp(p.FechaCreacion, now)
		data.Productos = append(data.Productos, p)
	}
	return rows.Err()
}

func (s *SyncService) snapshotMovimientos(ctx context.Context, userID string, now time.Time, data *SnapshotData) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, producto_id, fecha, tipo, monto, descripcion, user_id
		FROM movimientos
		WHERE user_id = @user_id
		ORDER BY id`,
		pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to fetch movimientos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m MovimientoOut
		var owner string
		if err := rows.Scan(&m.ID, &m.ProductoID, &m.Fecha, &m.Tipo, &m.Monto, &m.Descripcion, &owner); err != nil {
			return fmt.Errorf("failed to scan movimiento: %w", err)
		}
		m.UserID = coalesce(owner, userID)
		m.Fecha = synthesizeTimestamp(m.Fecha, now)
		data.Movimientos = append(data.Movimientos, m)
	}
	return rows.Err()
}

func (s *SyncService) snapshotPedidos(ctx context.Context, userID string, now time.Time, data *SnapshotData) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, cliente_id, cliente_nombre, cliente_telefono, titulo, descripcion,
		       fecha_entrega, precio, hecho, fecha_hecho, user_id, created_at
		FROM pedidos
		WHERE user_id = @user_id
		ORDER BY id`,
		pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to fetch pedidos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p PedidoOut
		var owner string
		if err := rows.Scan(&p.ID, &p.ClienteID, &p.ClienteNombre, &p.ClienteTelefono, &p.Titulo,
			&p.Descripcion, &p.FechaEntrega, &p.Precio, &p.Hecho, &p.FechaHecho, &owner, &p.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan pedido: %w", err)
		}
		p.UserID = coalesce(owner, userID)
		p.CreatedAt = synthesizeTimestamp(p.CreatedAt, now)
		data.Pedidos = append(data.Pedidos, p)
	}
	return rows.Err()
}

// synthesizeTimestamp fills a timestamp absent in storage with the response
// time. Cosmetic defaulting only - the stored row is never mutated.
func synthesizeTimestamp(stored string, now time.Time) string {
	if stored != "" {
		return stored
	}
	return now.UTC().Format(time.RFC3339)
}

func coalesce(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
