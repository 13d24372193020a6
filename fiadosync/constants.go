package fiadosync

// Entity kind names as they appear in sync payloads and per-record reports.
const (
	KindClientes    = "clientes"
	KindProductos   = "productos"
	KindMovimientos = "movimientos"
	KindPedidos     = "pedidos"
)

// Per-record issue reasons.
const (
	ReasonBadRecord    = "bad_record"
	ReasonFKMissing    = "fk_missing"
	ReasonApplyFailed  = "apply_failed"
	ReasonDeleteFailed = "delete_failed"
)

// upsertKindOrder is the parent-first application order for creates/updates:
// a movimiento's producto and a producto's cliente must already be applied
// (or exist) by the time the child row is written.
var upsertKindOrder = []string{KindClientes, KindProductos, KindMovimientos, KindPedidos}

// deleteKindOrder is the child-first removal order so explicit per-kind
// deletion leaves no orphans even without store-level cascades. Pedidos only
// soft-reference clientes and go last.
var deleteKindOrder = []string{KindMovimientos, KindProductos, KindClientes, KindPedidos}
