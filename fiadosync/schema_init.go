package fiadosync

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// initializeSchemaInTx creates the application tables if they don't exist.
// Ids are client-supplied; the identity default only covers the null-id
// fallback path. Primary keys are (user_id, id) so ids generated
// independently on different users' devices can never collide, and the
// cascading composite FKs keep the cliente -> producto -> movimiento graph
// consistent. Pedidos reference clientes softly (no FK): an order may outlive
// its cliente.
func (s *SyncService) initializeSchemaInTx(ctx context.Context, tx pgx.Tx) error {
	migrations := []string{
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS usuarios (
			id          BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			nombre      TEXT NOT NULL,
			email       TEXT NOT NULL UNIQUE,
			password    TEXT NOT NULL,
			dispositivo TEXT NOT NULL DEFAULT 'unknown',
			plan        TEXT NOT NULL DEFAULT 'free',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS suscripciones (
			id                BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			plan              TEXT NOT NULL,
			fecha_inicio      TEXT NOT NULL,
			fecha_vencimiento TEXT NOT NULL,
			estado            TEXT NOT NULL,
			token_pago        TEXT,
			id_usuario        BIGINT,
			email             TEXT,
			dispositivo       TEXT NOT NULL DEFAULT 'unknown'
		)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS clientes (
			user_id  TEXT   NOT NULL,
			id       BIGINT GENERATED BY DEFAULT AS IDENTITY,
			nombre   TEXT   NOT NULL DEFAULT '',
			telefono TEXT   NOT NULL DEFAULT '',
			correo   TEXT   NOT NULL DEFAULT '',
			PRIMARY KEY (user_id, id)
		)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS productos (
			user_id        TEXT   NOT NULL,
			id             BIGINT GENERATED BY DEFAULT AS IDENTITY,
			cliente_id     BIGINT,
			nombre         TEXT   NOT NULL DEFAULT '',
			descripcion    TEXT   NOT NULL DEFAULT '',
			fecha_creacion TEXT   NOT NULL DEFAULT '',
			PRIMARY KEY (user_id, id),
			FOREIGN KEY (user_id, cliente_id)
				REFERENCES clientes (user_id, id) ON DELETE CASCADE
		)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS movimientos (
			user_id     TEXT    NOT NULL,
			id          BIGINT  GENERATED BY DEFAULT AS IDENTITY,
			producto_id BIGINT  NOT NULL,
			fecha       TEXT    NOT NULL DEFAULT '',
			tipo        TEXT    NOT NULL DEFAULT '',
			monto       DOUBLE PRECISION NOT NULL DEFAULT 0,
			descripcion TEXT    NOT NULL DEFAULT '',
			PRIMARY KEY (user_id, id),
			FOREIGN KEY (user_id, producto_id)
				REFERENCES productos (user_id, id) ON DELETE CASCADE
		)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS pedidos (
			user_id          TEXT    NOT NULL,
			id               BIGINT  GENERATED BY DEFAULT AS IDENTITY,
			cliente_id       BIGINT,
			cliente_nombre   TEXT    NOT NULL DEFAULT '',
			cliente_telefono TEXT    NOT NULL DEFAULT '',
			titulo           TEXT    NOT NULL DEFAULT '',
			descripcion      TEXT    NOT NULL DEFAULT '',
			fecha_entrega    TEXT    NOT NULL DEFAULT '',
			precio           DOUBLE PRECISION NOT NULL DEFAULT 0,
			hecho            BOOLEAN NOT NULL DEFAULT FALSE,
			fecha_hecho      TEXT    NOT NULL DEFAULT '',
			created_at       TEXT    NOT NULL DEFAULT '',
			PRIMARY KEY (user_id, id)
		)`,

		`CREATE INDEX IF NOT EXISTS productos_cliente_idx ON productos (user_id, cliente_id)`,
		`CREATE INDEX IF NOT EXISTS movimientos_producto_idx ON movimientos (user_id, producto_id)`,
		`CREATE INDEX IF NOT EXISTS pedidos_cliente_idx ON pedidos (user_id, cliente_id)`,
		`CREATE INDEX IF NOT EXISTS suscripciones_usuario_idx ON suscripciones (id_usuario, fecha_vencimiento)`,
	}

	for i, migration := range migrations {
		s.logger.Debug("Running schema migration", "step", i+1, "total", len(migrations))
		if _, err := tx.Exec(ctx, migration); err != nil {
			return fmt.Errorf("schema migration %d failed: %w", i+1, err)
		}
	}
	s.logger.Info("Application schema initialized", "migrations", len(migrations))

	return nil
}
