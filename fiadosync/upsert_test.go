package fiadosync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func wid(v int64) *WireID {
	w := WireID(v)
	return &w
}

func TestBuildBatchIndex(t *testing.T) {
	req := &SyncRequest{
		Clientes: []Cliente{
			{ID: wid(1)},
			{ID: wid(2)},
			{ID: nil}, // store-assigned fallback never enters the index
		},
		Productos: []Producto{
			{ID: wid(10), ClienteID: wid(1)},
			{ID: wid(11)},
		},
		Deleted: DeletedSet{
			Clientes:  []WireID{2},
			Productos: []WireID{11},
		},
	}

	idx := buildBatchIndex(req)

	assert.Contains(t, idx.clientes, int64(1))
	assert.NotContains(t, idx.clientes, int64(2), "deleted in the same batch will not exist")
	assert.Contains(t, idx.productos, int64(10))
	assert.NotContains(t, idx.productos, int64(11))
	assert.Len(t, idx.clientes, 1)
	assert.Len(t, idx.productos, 1)
}

func TestBuildBatchIndex_Empty(t *testing.T) {
	idx := buildBatchIndex(&SyncRequest{})
	assert.Empty(t, idx.clientes)
	assert.Empty(t, idx.productos)
}

func TestPushOutcome_Fold(t *testing.T) {
	out := &pushOutcome{}
	out.countApplied(KindClientes)
	out.countApplied(KindClientes)
	out.countApplied(KindMovimientos)
	out.addIssue(KindProductos, wid(10), ReasonFKMissing, assert.AnError)
	out.addIssue(KindMovimientos, nil, ReasonBadRecord, nil)

	assert.Equal(t, 2, out.applied.Clientes)
	assert.Equal(t, 1, out.applied.Movimientos)
	assert.Equal(t, 0, out.applied.Productos)
	assert.False(t, out.fullyApplied())

	assert.Len(t, out.issues, 2)
	assert.Equal(t, KindProductos, out.issues[0].Kind)
	if assert.NotNil(t, out.issues[0].ID) {
		assert.Equal(t, int64(10), *out.issues[0].ID)
	}
	assert.NotEmpty(t, out.issues[0].Detail)
	assert.Nil(t, out.issues[1].ID)
	assert.Empty(t, out.issues[1].Detail)
}

func TestKindOrders(t *testing.T) {
	// Parents before children on the way in, children before parents on the
	// way out.
	assert.Equal(t, []string{KindClientes, KindProductos, KindMovimientos, KindPedidos}, upsertKindOrder)
	assert.Equal(t, []string{KindMovimientos, KindProductos, KindClientes, KindPedidos}, deleteKindOrder)
}
