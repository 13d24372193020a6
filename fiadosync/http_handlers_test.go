package fiadosync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine scripts ProcessPush/ProcessSnapshot results for handler tests.
type fakeEngine struct {
	pushResp  *SyncResponse
	pushErr   error
	snapData  *SnapshotData
	snapErr   error
	gotUserID string
	gotReq    *SyncRequest
}

func (f *fakeEngine) ProcessPush(_ context.Context, userID string, req *SyncRequest) (*SyncResponse, error) {
	f.gotUserID = userID
	f.gotReq = req
	return f.pushResp, f.pushErr
}

func (f *fakeEngine) ProcessSnapshot(_ context.Context, userID string) (*SnapshotData, error) {
	f.gotUserID = userID
	return f.snapData, f.snapErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHandlePush_Success(t *testing.T) {
	engine := &fakeEngine{
		pushResp: &SyncResponse{
			Success:  true,
			Message:  "Sincronización completada",
			Received: KindCounts{Clientes: 1, Movimientos: 1},
			Applied:  KindCounts{Clientes: 1, Movimientos: 1},
		},
	}
	h := NewHTTPSyncHandlers(engine, testLogger())

	body := `{"userId":"7","clientes":[{"id":1,"nombre":"Ana"}],"movimientos":[{"id":100,"producto_id":10,"monto":50}]}`
	r := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandlePush(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "7", engine.gotUserID)
	require.NotNil(t, engine.gotReq)
	assert.Len(t, engine.gotReq.Clientes, 1)

	var resp SyncResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Applied.Clientes)
	assert.Equal(t, 1, resp.Applied.Movimientos)
}

func TestHandlePush_NumericUserID(t *testing.T) {
	engine := &fakeEngine{pushResp: &SyncResponse{Success: true}}
	h := NewHTTPSyncHandlers(engine, testLogger())

	r := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"userId":7}`))
	w := httptest.NewRecorder()
	h.HandlePush(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", engine.gotUserID)
}

func TestHandlePush_MissingUserID(t *testing.T) {
	engine := &fakeEngine{}
	h := NewHTTPSyncHandlers(engine, testLogger())

	r := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"clientes":[]}`))
	w := httptest.NewRecorder()
	h.HandlePush(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "faltan campos requeridos: userId", resp.Error)
	assert.Empty(t, engine.gotUserID, "engine must not be reached")
}

func TestHandlePush_BadBody(t *testing.T) {
	h := NewHTTPSyncHandlers(&fakeEngine{}, testLogger())

	r := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()
	h.HandlePush(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Cuerpo de la petición inválido", resp.Error)
}

func TestHandlePush_EngineFailure(t *testing.T) {
	engine := &fakeEngine{pushErr: errors.New("write failed")}
	h := NewHTTPSyncHandlers(engine, testLogger())

	r := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"userId":"7"}`))
	w := httptest.NewRecorder()
	h.HandlePush(w, r)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Error al sincronizar", resp.Error)
	assert.Equal(t, "write failed", resp.Details)
}

func TestHandlePush_ValidationErrorFromEngine(t *testing.T) {
	engine := &fakeEngine{pushErr: NewValidationError("userId")}
	h := NewHTTPSyncHandlers(engine, testLogger())

	r := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"userId":"  7 "}`))
	w := httptest.NewRecorder()
	h.HandlePush(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSnapshot_Success(t *testing.T) {
	engine := &fakeEngine{
		snapData: &SnapshotData{
			Clientes: []ClienteOut{{ID: 1, Nombre: "Ana", UserID: "7"}},
			Productos: []ProductoOut{
				{ID: 10, Nombre: "Tab", UserID: "7"},
			},
			Movimientos: []MovimientoOut{},
			Pedidos:     []PedidoOut{},
		},
	}
	h := NewHTTPSyncHandlers(engine, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/sync?userId=7", nil)
	w := httptest.NewRecorder()
	h.HandleSnapshot(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", engine.gotUserID)

	var resp SnapshotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Datos obtenidos: 1 clientes, 1 productos, 0 movimientos, 0 pedidos", resp.Message)
	require.Len(t, resp.Data.Clientes, 1)
	assert.Equal(t, "Ana", resp.Data.Clientes[0].Nombre)

	// Empty kinds stay arrays, never null, so the app can iterate them.
	assert.Contains(t, w.Body.String(), `"movimientos":[]`)
	assert.Contains(t, w.Body.String(), `"pedidos":[]`)
}

func TestHandleSnapshot_MissingUserID(t *testing.T) {
	h := NewHTTPSyncHandlers(&fakeEngine{}, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/sync", nil)
	w := httptest.NewRecorder()
	h.HandleSnapshot(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Se requiere el parámetro userId", resp.Error)
}

func TestHandleSnapshot_EngineFailure(t *testing.T) {
	engine := &fakeEngine{snapErr: errors.New("query failed")}
	h := NewHTTPSyncHandlers(engine, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/sync?userId=7", nil)
	w := httptest.NewRecorder()
	h.HandleSnapshot(w, r)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Error al obtener los datos", resp.Error)
}
