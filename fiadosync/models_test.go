package fiadosync

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexString_UnmarshalJSON(t *testing.T) {
	var payload struct {
		UserID FlexString `json:"userId"`
	}

	// String form
	if err := json.Unmarshal([]byte(`{"userId":"7"}`), &payload); err != nil {
		t.Fatalf("Failed to unmarshal string userId: %v", err)
	}
	if payload.UserID.String() != "7" {
		t.Errorf("Expected \"7\", got %q", payload.UserID)
	}

	// Number form
	if err := json.Unmarshal([]byte(`{"userId":7}`), &payload); err != nil {
		t.Fatalf("Failed to unmarshal numeric userId: %v", err)
	}
	if payload.UserID.String() != "7" {
		t.Errorf("Expected \"7\", got %q", payload.UserID)
	}

	// Null form
	if err := json.Unmarshal([]byte(`{"userId":null}`), &payload); err != nil {
		t.Fatalf("Failed to unmarshal null userId: %v", err)
	}
	if payload.UserID.String() != "" {
		t.Errorf("Expected empty string for null, got %q", payload.UserID)
	}

	// Objects are rejected
	if err := json.Unmarshal([]byte(`{"userId":{}}`), &payload); err == nil {
		t.Error("Expected error for object userId")
	}
}

func TestWireID_UnmarshalJSON(t *testing.T) {
	var rec struct {
		ID *WireID `json:"id"`
	}

	if err := json.Unmarshal([]byte(`{"id":42}`), &rec); err != nil {
		t.Fatalf("Failed to unmarshal numeric id: %v", err)
	}
	if rec.ID == nil || rec.ID.Int64() != 42 {
		t.Errorf("Expected 42, got %v", rec.ID)
	}

	if err := json.Unmarshal([]byte(`{"id":"123"}`), &rec); err != nil {
		t.Fatalf("Failed to unmarshal string id: %v", err)
	}
	if rec.ID == nil || rec.ID.Int64() != 123 {
		t.Errorf("Expected 123, got %v", rec.ID)
	}

	// Null stays nil (store-assigned fallback)
	rec.ID = nil
	if err := json.Unmarshal([]byte(`{"id":null}`), &rec); err != nil {
		t.Fatalf("Failed to unmarshal null id: %v", err)
	}
	if rec.ID != nil {
		t.Errorf("Expected nil for null id, got %v", rec.ID)
	}

	if err := json.Unmarshal([]byte(`{"id":"abc"}`), &rec); err == nil {
		t.Error("Expected error for non-numeric id")
	}
}

func TestFlexBool_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{`true`, true, false},
		{`false`, false, false},
		{`1`, true, false},
		{`0`, false, false},
		{`"true"`, true, false},
		{`"1"`, true, false},
		{`"0"`, false, false},
		{`""`, false, false},
		{`null`, false, false},
		{`"maybe"`, false, true},
	}

	for _, tc := range cases {
		var v FlexBool
		err := json.Unmarshal([]byte(tc.raw), &v)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Expected error for %s", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unexpected error for %s: %v", tc.raw, err)
			continue
		}
		if v.Bool() != tc.want {
			t.Errorf("For %s expected %v, got %v", tc.raw, tc.want, v.Bool())
		}
	}
}

func TestOwnerOrFallback(t *testing.T) {
	if got := ownerOrFallback("record-user", "batch-user"); got != "record-user" {
		t.Errorf("Record userId should win, got %q", got)
	}
	if got := ownerOrFallback("", "batch-user"); got != "batch-user" {
		t.Errorf("Expected batch fallback, got %q", got)
	}
	if got := ownerOrFallback("  ", "batch-user"); got != "batch-user" {
		t.Errorf("Whitespace userId should fall back, got %q", got)
	}
}

func TestSynthesizeTimestamp(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	if got := synthesizeTimestamp("2024-01-01T00:00:00Z", now); got != "2024-01-01T00:00:00Z" {
		t.Errorf("Stored timestamp should pass through, got %q", got)
	}
	if got := synthesizeTimestamp("", now); got != "2025-03-14T15:09:26Z" {
		t.Errorf("Absent timestamp should synthesize response time, got %q", got)
	}
}

func TestSyncRequest_Decode(t *testing.T) {
	body := []byte(`{
		"userId": 7,
		"clientes": [{"id": 1, "nombre": "Ana", "telefono": "555"}],
		"productos": [{"id": 10, "cliente_id": 1, "nombre": "Tab"}],
		"movimientos": [{"id": 100, "producto_id": 10, "tipo": "credito", "monto": 50}],
		"pedidos": [{"id": 5, "titulo": "Entrega", "hecho": 1}],
		"deleted": {"clientes": [2], "movimientos": ["3"]}
	}`)

	var req SyncRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("Failed to decode sync request: %v", err)
	}

	if req.UserID.String() != "7" {
		t.Errorf("Expected userId \"7\", got %q", req.UserID)
	}
	if len(req.Clientes) != 1 || req.Clientes[0].ID.Int64() != 1 || req.Clientes[0].Nombre != "Ana" {
		t.Errorf("Unexpected clientes: %+v", req.Clientes)
	}
	if len(req.Productos) != 1 || req.Productos[0].ClienteID.Int64() != 1 {
		t.Errorf("Unexpected productos: %+v", req.Productos)
	}
	if len(req.Movimientos) != 1 || req.Movimientos[0].Monto != 50 {
		t.Errorf("Unexpected movimientos: %+v", req.Movimientos)
	}
	if !req.Pedidos[0].Hecho.Bool() {
		t.Error("Expected hecho=1 to decode as true")
	}
	if len(req.Deleted.Clientes) != 1 || req.Deleted.Clientes[0].Int64() != 2 {
		t.Errorf("Unexpected deleted clientes: %+v", req.Deleted.Clientes)
	}
	if len(req.Deleted.Movimientos) != 1 || req.Deleted.Movimientos[0].Int64() != 3 {
		t.Errorf("Unexpected deleted movimientos: %+v", req.Deleted.Movimientos)
	}
}
