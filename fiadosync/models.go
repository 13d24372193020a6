package fiadosync

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Wire models for the push surface. Mobile clients are loose with JSON types:
// userId arrives as a string or a number, ids sometimes as numeric strings,
// and completion flags as bool/0/1. The Flex* types absorb that here so the
// rest of the engine works with plain Go values.

// FlexString decodes a JSON string, number, or null into a string.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("userId must be a string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// WireID is a client-supplied integer identifier that may arrive as a JSON
// number or a numeric string.
type WireID int64

func (w *WireID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s = strings.TrimSpace(v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", s)
	}
	*w = WireID(n)
	return nil
}

func (w WireID) Int64() int64 { return int64(w) }

// FlexBool decodes JSON bool, 0/1 numbers, and "true"/"1" strings.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch s {
	case "null":
		*f = false
		return nil
	case "true":
		*f = true
		return nil
	case "false":
		*f = false
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s = strings.TrimSpace(v)
	}
	switch strings.ToLower(s) {
	case "true", "1":
		*f = true
	case "", "false", "0":
		*f = false
	default:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid boolean value %q", s)
		}
		*f = n != 0
	}
	return nil
}

func (f FlexBool) Bool() bool { return bool(f) }

// Cliente is a customer record as submitted by a client device.
type Cliente struct {
	ID       *WireID    `json:"id"`
	Nombre   string     `json:"nombre"`
	Telefono string     `json:"telefono"`
	Correo   string     `json:"correo"`
	UserID   FlexString `json:"userId,omitempty"`
}

// Producto is an item/open tab associated with a cliente. ClienteID is
// nullable: productos may be orphaned when their cliente is removed.
type Producto struct {
	ID            *WireID    `json:"id"`
	ClienteID     *WireID    `json:"cliente_id"`
	Nombre        string     `json:"nombre"`
	Descripcion   string     `json:"descripcion"`
	FechaCreacion string     `json:"fecha_creacion"`
	UserID        FlexString `json:"userId,omitempty"`
}

// Movimiento is a single ledger transaction against a producto. The owning
// producto must exist by the time the movimiento is applied.
type Movimiento struct {
	ID          *WireID    `json:"id"`
	ProductoID  *WireID    `json:"producto_id"`
	Fecha       string     `json:"fecha"`
	Tipo        string     `json:"tipo"`
	Monto       float64    `json:"monto"`
	Descripcion string     `json:"descripcion"`
	UserID      FlexString `json:"userId,omitempty"`
}

// Pedido is a scheduled delivery/commitment record. The cliente reference is
// soft: denormalized name/phone survive cliente deletion.
type Pedido struct {
	ID              *WireID    `json:"id"`
	ClienteID       *WireID    `json:"cliente_id"`
	ClienteNombre   string     `json:"cliente_nombre"`
	ClienteTelefono string     `json:"cliente_telefono"`
	Titulo          string     `json:"titulo"`
	Descripcion     string     `json:"descripcion"`
	FechaEntrega    string     `json:"fecha_entrega"`
	Precio          float64    `json:"precio"`
	Hecho           FlexBool   `json:"hecho"`
	FechaHecho      string     `json:"fecha_hecho"`
	UserID          FlexString `json:"userId,omitempty"`
	CreatedAt       string     `json:"createdAt"`
}

// ownerOrFallback resolves the owning-user id for a record: the record's own
// userId wins, otherwise the batch-level user id applies.
func ownerOrFallback(recordUser FlexString, batchUser string) string {
	if u := strings.TrimSpace(string(recordUser)); u != "" {
		return u
	}
	return batchUser
}

// Snapshot wire models. Foreign-key columns are renamed to the client-facing
// camelCase field names, and every record carries a denormalized owner id.

type ClienteOut struct {
	ID       int64  `json:"id"`
	Nombre   string `json:"nombre"`
	Telefono string `json:"telefono"`
	Correo   string `json:"correo"`
	UserID   string `json:"userId"`
}

type ProductoOut struct {
	ID            int64  `json:"id"`
	ClienteID     *int64 `json:"clienteId"`
	Nombre        string `json:"nombre"`
	Descripcion   string `json:"descripcion"`
	FechaCreacion string `json:"fechaCreacion"`
	UserID        string `json:"userId"`
}

type MovimientoOut struct {
	ID          int64   `json:"id"`
	ProductoID  int64   `json:"productoId"`
	Fecha       string  `json:"fecha"`
	Tipo        string  `json:"tipo"`
	Monto       float64 `json:"monto"`
	Descripcion string  `json:"descripcion"`
	UserID      string  `json:"userId"`
}

type PedidoOut struct {
	ID              int64   `json:"id"`
	ClienteID       *int64  `json:"clienteId"`
	ClienteNombre   string  `json:"clienteNombre"`
	ClienteTelefono string  `json:"clienteTelefono"`
	Titulo          string  `json:"titulo"`
	Descripcion     string  `json:"descripcion"`
	FechaEntrega    string  `json:"fechaEntrega"`
	Precio          float64 `json:"precio"`
	Hecho           bool    `json:"hecho"`
	FechaHecho      string  `json:"fechaHecho"`
	UserID          string  `json:"userId"`
	CreatedAt       string  `json:"createdAt"`
}
