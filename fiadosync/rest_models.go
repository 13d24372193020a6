package fiadosync

// REST/JSON models for the sync HTTP API.

// SyncRequest is a push batch: creates/updates per entity kind plus explicit
// deletion id lists. A payload that omits records never deletes them; removal
// happens only through Deleted.
type SyncRequest struct {
	UserID      FlexString   `json:"userId"`
	Clientes    []Cliente    `json:"clientes"`
	Productos   []Producto   `json:"productos"`
	Movimientos []Movimiento `json:"movimientos"`
	Pedidos     []Pedido     `json:"pedidos"`
	Deleted     DeletedSet   `json:"deleted"`
}

// DeletedSet carries the ids to remove, per entity kind.
type DeletedSet struct {
	Clientes    []WireID `json:"clientes"`
	Productos   []WireID `json:"productos"`
	Movimientos []WireID `json:"movimientos"`
	Pedidos     []WireID `json:"pedidos"`
}

// KindCounts holds one counter per entity kind.
type KindCounts struct {
	Clientes    int `json:"clientes"`
	Productos   int `json:"productos"`
	Movimientos int `json:"movimientos"`
	Pedidos     int `json:"pedidos"`
}

// RecordIssue reports one record that could not be applied. The record is
// skipped, the rest of the batch proceeds.
type RecordIssue struct {
	Kind   string `json:"tipo"`
	ID     *int64 `json:"id"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// SyncResponse is the push result. Received counts submitted records;
// Applied and Issues report the per-record outcome so callers can tell a
// fully applied batch from a partially applied one.
type SyncResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Received KindCounts    `json:"received"`
	Applied  KindCounts    `json:"applied"`
	Issues   []RecordIssue `json:"issues,omitempty"`
}

// SnapshotData is the full reconstructed state of one user's records.
type SnapshotData struct {
	Clientes    []ClienteOut    `json:"clientes"`
	Productos   []ProductoOut   `json:"productos"`
	Movimientos []MovimientoOut `json:"movimientos"`
	Pedidos     []PedidoOut     `json:"pedidos"`
}

// SnapshotResponse is the pull result.
type SnapshotResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    SnapshotData `json:"data"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
