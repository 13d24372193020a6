package fiadosync

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// processDeletes removes the requested ids child-first: movimientos,
// productos, clientes, pedidos. Cliente removal cascades explicitly through
// its productos and their movimientos, so the dependent graph stays
// consistent even without store-level cascade support; where the store does
// cascade, the redundant child deletes are successful no-ops. Deleting an id
// that never existed (or was already deleted) is never an error.
func (s *SyncService) processDeletes(ctx context.Context, tx pgx.Tx, userID string, del *DeletedSet, out *pushOutcome) error {
	for _, kind := range deleteKindOrder {
		var err error
		switch kind {
		case KindMovimientos:
			err = s.deleteMovimientos(ctx, tx, userID, del.Movimientos, out)
		case KindProductos:
			err = s.deleteProductos(ctx, tx, userID, del.Productos, out)
		case KindClientes:
			err = s.deleteClientes(ctx, tx, userID, del.Clientes, out)
		case KindPedidos:
			err = s.deletePedidos(ctx, tx, userID, del.Pedidos, out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// deleteMovimientos deletes unconditionally: a missing row is a no-op at the
// store level.
func (s *SyncService) deleteMovimientos(ctx context.Context, tx pgx.Tx, userID string, ids []WireID, out *pushOutcome) error {
	for i, id := range ids {
		id := id
		recordErr, err := runIsolated(ctx, tx, fmt.Sprintf("sp_del_mov_%d", i), func() error {
			_, err := tx.Exec(ctx,
				`DELETE FROM movimientos WHERE user_id = $1 AND id = $2`, userID, id.Int64())
			return err
		})
		if err != nil {
			return err
		}
		if recordErr != nil {
			s.logger.Warn("Movimiento delete skipped", "user_id", userID, "id", id.Int64(), "error", recordErr)
			out.addIssue(KindMovimientos, &id, ReasonDeleteFailed, recordErr)
		}
	}
	return nil
}

// deleteProductos removes each producto's movimientos first, then the
// producto itself.
func (s *SyncService) deleteProductos(ctx context.Context, tx pgx.Tx, userID string, ids []WireID, out *pushOutcome) error {
	for i, id := range ids {
		id := id
		recordErr, err := runIsolated(ctx, tx, fmt.Sprintf("sp_del_prod_%d", i), func() error {
			if _, err := tx.Exec(ctx,
				`DELETE FROM movimientos WHERE user_id = $1 AND producto_id = $2`, userID, id.Int64()); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`DELETE FROM productos WHERE user_id = $1 AND id = $2`, userID, id.Int64())
			return err
		})
		if err != nil {
			return err
		}
		if recordErr != nil {
			s.logger.Warn("Producto delete skipped", "user_id", userID, "id", id.Int64(), "error", recordErr)
			out.addIssue(KindProductos, &id, ReasonDeleteFailed, recordErr)
		}
	}
	return nil
}

// deleteClientes verifies existence first and silently skips unknown ids so
// retried delete batches never surface errors. Removal cascades through the
// cliente's productos and their movimientos.
func (s *SyncService) deleteClientes(ctx context.Context, tx pgx.Tx, userID string, ids []WireID, out *pushOutcome) error {
	for i, id := range ids {
		id := id

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM clientes WHERE user_id = $1 AND id = $2)`,
			userID, id.Int64()).Scan(&exists); err != nil {
			return fmt.Errorf("cliente existence check failed: %w", err)
		}
		if !exists {
			s.logger.Debug("Cliente already absent, skipping delete", "user_id", userID, "id", id.Int64())
			continue
		}

		recordErr, err := runIsolated(ctx, tx, fmt.Sprintf("sp_del_cli_%d", i), func() error {
			if _, err := tx.Exec(ctx, `
				DELETE FROM movimientos
				WHERE user_id = $1
				  AND producto_id IN (SELECT id FROM productos WHERE user_id = $1 AND cliente_id = $2)`,
				userID, id.Int64()); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`DELETE FROM productos WHERE user_id = $1 AND cliente_id = $2`, userID, id.Int64()); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`DELETE FROM clientes WHERE user_id = $1 AND id = $2`, userID, id.Int64())
			return err
		})
		if err != nil {
			return err
		}
		if recordErr != nil {
			s.logger.Warn("Cliente delete skipped", "user_id", userID, "id", id.Int64(), "error", recordErr)
			out.addIssue(KindClientes, &id, ReasonDeleteFailed, recordErr)
		}
	}
	return nil
}

// deletePedidos verifies existence first, same as clientes.
func (s *SyncService) deletePedidos(ctx context.Context, tx pgx.Tx, userID string, ids []WireID, out *pushOutcome) error {
	for i, id := range ids {
		id := id

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM pedidos WHERE user_id = $1 AND id = $2)`,
			userID, id.Int64()).Scan(&exists); err != nil {
			return fmt.Errorf("pedido existence check failed: %w", err)
		}
		if !exists {
			s.logger.Debug("Pedido already absent, skipping delete", "user_id", userID, "id", id.Int64())
			continue
		}

		recordErr, err := runIsolated(ctx, tx, fmt.Sprintf("sp_del_ped_%d", i), func() error {
			_, err := tx.Exec(ctx,
				`DELETE FROM pedidos WHERE user_id = $1 AND id = $2`, userID, id.Int64())
			return err
		})
		if err != nil {
			return err
		}
		if recordErr != nil {
			s.logger.Warn("Pedido delete skipped", "user_id", userID, "id", id.Int64(), "error", recordErr)
			out.addIssue(KindPedidos, &id, ReasonDeleteFailed, recordErr)
		}
	}
	return nil
}
