package fiadosync

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type pkset map[int64]struct{}

// batchIndex holds the parent ids that *will exist* at the end of this push:
// all upserted ids minus ids deleted in the same batch. It feeds the FK
// precheck so a child may reference a parent created by the same request.
type batchIndex struct {
	clientes  pkset
	productos pkset
}

func buildBatchIndex(req *SyncRequest) batchIndex {
	idx := batchIndex{clientes: pkset{}, productos: pkset{}}

	for _, c := range req.Clientes {
		if c.ID != nil {
			idx.clientes[c.ID.Int64()] = struct{}{}
		}
	}
	for _, p := range req.Productos {
		if p.ID != nil {
			idx.productos[p.ID.Int64()] = struct{}{}
		}
	}

	// Deletes in the same batch remove rows that would otherwise exist.
	for _, id := range req.Deleted.Clientes {
		delete(idx.clientes, id.Int64())
	}
	for _, id := range req.Deleted.Productos {
		delete(idx.productos, id.Int64())
	}

	return idx
}

// runIsolated executes fn inside a SAVEPOINT. A fn error rolls the savepoint
// back and comes back as recordErr so the caller can skip just that record;
// savepoint bookkeeping failures abort the whole transaction.
func runIsolated(ctx context.Context, tx pgx.Tx, name string, fn func() error) (recordErr, err error) {
	sp := pgx.Identifier{name}.Sanitize()
	if _, err := tx.Exec(ctx, "SAVEPOINT "+sp); err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}
	if ferr := fn(); ferr != nil {
		_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sp)
		_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT "+sp)
		return ferr, nil
	}
	if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return nil, fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil, nil
}

// processUpserts applies creates/updates parent-first: clientes, productos,
// movimientos, pedidos. Each record is insert-or-replace keyed by
// (user_id, id) and individually failure-isolated.
func (s *SyncService) processUpserts(ctx context.Context, tx pgx.Tx, userID string, req *SyncRequest, inBatch batchIndex, out *pushOutcome) error {
	for _, kind := range upsertKindOrder {
		var err error
		switch kind {
		case KindClientes:
			err = s.upsertClientes(ctx, tx, userID, req.Clientes, out)
		case KindProductos:
			err = s.upsertProductos(ctx, tx, userID, req.Productos, inBatch, out)
		case KindMovimientos:
			err = s.upsertMovimientos(ctx, tx, userID, req.Movimientos, inBatch, out)
		case KindPedidos:
			err = s.upsertPedidos(ctx, tx, userID, req.Pedidos, out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) upsertClientes(ctx context.Context, tx pgx.Tx, userID string, recs []Cliente, out *pushOutcome) error {
	for i := range recs {
		rec := &recs[i]
		owner := ownerOrFallback(rec.UserID, userID)

		recordErr, err := runIsolated(ctx, tx, fmt.Sprintf("sp_cli_%d", i), func() error {
			if rec.ID == nil {
				// Store-assigned fallback id. Accepted, but it breaks
				// idempotent retries - clients are expected to supply ids.
				_, err := tx.Exec(ctx, `
					INSERT INTO clientes (user_id, nombre, telefono, correo)
					VALUES (@user_id, @nombre, @telefono, @correo)`,
					pgx.NamedArgs{
						"user_id":  owner,
						"nombre":   rec.Nombre,
						"telefono": rec.Telefono,
						"correo":   rec.Correo,
					})
				return err
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO clientes (user_id, id, nombre, telefono, correo)
				VALUES (@user_id, @id, @nombre, @telefono, @correo)
				ON CONFLICT (user_id, id) DO UPDATE SET
					nombre   = EXCLUDED.nombre,
					telefono = EXCLUDED.telefono,
					correo   = EXCLUDED.correo`,
				pgx.NamedArgs{
					"user_id":  owner,
					"id":       rec.ID.Int64(),
					"nombre":   rec.Nombre,
					"telefono": rec.Telefono,
					"correo":   rec.Correo,
				})
			return err
		})
		if err != nil {
			return err
		}
		if recordErr != nil {
			s.logger.Warn("Cliente upsert skipped", "user_id", owner, "index", i, "error", recordErr)
			out.addIssue(KindClientes, rec.ID, ReasonApplyFailed, recordErr)
			continue
		}
		out.countApplied(KindClientes)
	}
	return nil
}

func (s *SyncService) upsertProductos(ctx context.Context, tx pgx.Tx, userID string, recs []Producto, inBatch batchIndex, out *pushOutcome) error {
	for i := range recs {
		rec := &recs[i]
		owner := ownerOrFallback(rec.UserID, userID)

		if rec.ClienteID != nil {
			ok, err := s.parentExists(ctx, tx, "clientes", owner, rec.ClienteID.Int64(), inBatch.clientes)
			if err != nil {
				return err
			}
			if !ok {
				s.logger.Warn("Producto references missing cliente",
					"user_id", owner, "producto_id", rec.ID, "cliente_id", rec.ClienteID.Int64())
				out.addIssue(KindProductos, rec.ID, ReasonFKMissing,
					fmt.Errorf("cliente %d no existe", rec.ClienteID.Int64()))
				continue
			}
		}

		recordErr, err := runIsolated(ctx, tx, fmt.Sprintf("sp_prod_%d", i), func() error {
			if rec.ID == nil {
				_, err := tx.Exec(ctx, `
					INSERT INTO productos (user_id, cliente_id, nombre, descripcion, fecha_creacion)
					VALUES (@user_id, @cliente_id, @nombre, @descripcion, @fecha_creacion)`,
					pgx.NamedArgs{
						"user_id":        owner,
						"cliente_id":     wireIDPtr(rec.ClienteID),
						"nombre":         rec.Nombre,
						"descripcion":    rec.Descripcion,
						"fecha_creacion": rec.FechaCreacion,
					})
				return err
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO productos (user_id, id, cliente_id, nombre, descripcion, fecha_creacion)
				VALUES (@user_id, @id, @cliente_id, @nombre, @descripcion, @fecha_creacion)
				ON CONFLICT (user_id, id) DO UPDATE SET
					cliente_id     = EXCLUDED.cliente_id,
					nombre         = EXCLUDED.nombre,
					descripcion    = EXCLUDED.descripcion,
					fecha_creacion = EXCLUDED.fecha_creacion`,
				pgx.NamedArgs{
					"user_id":        owner,
					"id":             rec.ID.Int64(),
					"cliente_id":     wireIDPtr(rec.ClienteID),
					"nombre":         rec.Nombre,
					"descripcion":    rec.Descripcion,
					"fecha_creacion": rec.FechaCreacion,
				})
			return err
		})
		if err != nil {
			return err
		}
		if recordErr != nil {
			s.logger.Warn("Producto upsert skipped", "user_id", owner, "index", i, "error", recordErr)
			out.addIssue(KindProductos, rec.ID, ReasonApplyFailed, recordErr)
			continue
		}
		out.countApplied(KindProductos)
	}
	return nil
}

func (s *SyncService) upsertMovimientos(ctx context.Context, tx pgx.Tx, userID string, recs []Movimiento, inBatch batchIndex, out *pushOutcome) error {
	for i := range recs {
		rec := &recs[i]
		owner := ownerOrFallback(rec.UserID, userID)

		if rec.ProductoID == nil {
			out.addIssue(KindMovimientos, rec.ID, ReasonBadRecord,
				fmt.Errorf("producto_id es requerido"))
			continue
		}
		ok, err := s.parentExists(ctx, tx, "productos", owner, rec.ProductoID.Int64(), inBatch.productos)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Warn("Movimiento references missing producto",
				"user_id", owner, "movimiento_id", rec.ID, "producto_id", rec.ProductoID.Int64())
			out.addIssue(KindMovimientos, rec.ID, ReasonFKMissing,
				fmt.Errorf("producto %d no existe", rec.ProductoID.Int64()))
			continue
		}

		recordErr, err := runIsolated(ctx, tx, fmt.Sprintf("sp_mov_%d", i), func() error {
			if rec.ID == nil {
				_, err := tx.Exec(ctx, `
					INSERT INTO movimientos (user_id, producto_id, fecha, tipo, monto, descripcion)
					VALUES (@user_id, @producto_id, @fecha, @tipo, @monto, @descripcion)`,
					pgx.NamedArgs{
						"user_id":     owner,
						"producto_id": rec.ProductoID.Int64(),
						"fecha":       rec.Fecha,
						"tipo":        rec.Tipo,
						"monto":       rec.Monto,
						"descripcion": rec.Descripcion,
					})
				return err
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO movimientos (user_id, id, producto_id, fecha, tipo, monto, descripcion)
				VALUES (@user_id, @id, @producto_id, @fecha, @tipo, @monto, @descripcion)
				ON CONFLICT (user_id, id) DO UPDATE SET
					producto_id = EXCLUDED.producto_id,
					fecha       = EXCLUDED.fecha,
					tipo        = EXCLUDED.tipo,
					monto       = EXCLUDED.monto,
					descripcion = EXCLUDED.descripcion`,
				pgx.NamedArgs{
					"user_id":     owner,
					"id":          rec.ID.Int64(),
					"producto_id": rec.ProductoID.Int64(),
					"fecha":       rec.Fecha,
					"tipo":        rec.Tipo,
					"monto":       rec.Monto,
					"descripcion": rec.Descripcion,
				})
			return err
		})
		if err != nil {
			return err
		}
		if recordErr != nil {
			s.logger.Warn("Movimiento upsert skipped", "user_id", owner, "index", i, "error", recordErr)
			out.addIssue(KindMovimientos, rec.ID, ReasonApplyFailed, recordErr)
			continue
		}
		out.countApplied(KindMovimientos)
	}
	return nil
}

func (s *SyncService) upsertPedidos(ctx context.Context, tx pgx.Tx, userID string, recs []Pedido, out *pushOutcome) error {
	for i := range recs {
		rec := &recs[i]
		owner := ownerOrFallback(rec.UserID, userID)

		recordErr, err := runIsolated(ctx, tx, fmt.Sprintf("sp_ped_%d", i), func() error {
			args := pgx.NamedArgs{
				"user_id":          owner,
				"cliente_id":       wireIDPtr(rec.ClienteID),
				"cliente_nombre":   rec.ClienteNombre,
				"cliente_telefono": rec.ClienteTelefono,
				"titulo":           rec.Titulo,
				"descripcion":      rec.Descripcion,
				"fecha_entrega":    rec.FechaEntrega,
				"precio":           rec.Precio,
				"hecho":            rec.Hecho.Bool(),
				"fecha_hecho":      rec.FechaHecho,
				"created_at":       rec.CreatedAt,
			}
			if rec.ID == nil {
				_, err := tx.Exec(ctx, `
					INSERT INTO pedidos (user_id, cliente_id, cliente_nombre, cliente_telefono,
						titulo, descripcion, fecha_entrega, precio, hecho, fecha_hecho, created_at)
					VALUES (@user_id, @cliente_id, @cliente_nombre, @cliente_telefono,
						@titulo, @descripcion, @fecha_entrega, @precio, @hecho, @fecha_hecho, @created_at)`,
					args)
				return err
			}
			args["id"] = rec.ID.Int64()
			_, err := tx.Exec(ctx, `
				INSERT INTO pedidos (user_id, id, cliente_id, cliente_nombre, cliente_telefono,
					titulo, descripcion, fecha_entrega, precio, hecho, fecha_hecho, created_at)
				VALUES (@user_id, @id, @cliente_id, @cliente_nombre, @cliente_telefono,
					@titulo, @descripcion, @fecha_entrega, @precio, @hecho, @fecha_hecho, @created_at)
				ON CONFLICT (user_id, id) DO UPDATE SET
					cliente_id       = EXCLUDED.cliente_id,
					cliente_nombre   = EXCLUDED.cliente_nombre,
					cliente_telefono = EXCLUDED.cliente_telefono,
					titulo           = EXCLUDED.titulo,
					descripcion      = EXCLUDED.descripcion,
					fecha_entrega    = EXCLUDED.fecha_entrega,
					precio           = EXCLUDED.precio,
					hecho            = EXCLUDED.hecho,
					fecha_hecho      = EXCLUDED.fecha_hecho,
					created_at       = EXCLUDED.created_at`,
				args)
			return err
		})
		if err != nil {
			return err
		}
		if recordErr != nil {
			s.logger.Warn("Pedido upsert skipped", "user_id", owner, "index", i, "error", recordErr)
			out.addIssue(KindPedidos, rec.ID, ReasonApplyFailed, recordErr)
			continue
		}
		out.countApplied(KindPedidos)
	}
	return nil
}

// parentExists checks whether a referenced parent row exists in the store or
// will exist by the end of this batch.
func (s *SyncService) parentExists(ctx context.Context, tx pgx.Tx, table, owner string, id int64, willExist pkset) (bool, error) {
	if _, ok := willExist[id]; ok {
		return true, nil
	}

	var exists bool
	var query string
	switch table {
	case "clientes":
		query = `SELECT EXISTS (SELECT 1 FROM clientes WHERE user_id = $1 AND id = $2)`
	case "productos":
		query = `SELECT EXISTS (SELECT 1 FROM productos WHERE user_id = $1 AND id = $2)`
	default:
		return false, fmt.Errorf("unknown parent table %q", table)
	}
	if err := tx.QueryRow(ctx, query, owner, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("parent precheck failed for %s %d: %w", table, id, err)
	}
	return exists, nil
}

func wireIDPtr(id *WireID) *int64 {
	if id == nil {
		return nil
	}
	v := id.Int64()
	return &v
}
