package fiadosync

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenAuth_GenerateAndValidate(t *testing.T) {
	auth := NewTokenAuth("", "test-secret")

	token, err := auth.GenerateToken("7", "device-abc", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Fatal("Generated token should not be empty")
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate generated token: %v", err)
	}
	if claims.Subject != "7" {
		t.Errorf("Expected subject 7, got %s", claims.Subject)
	}
	if claims.DeviceID != "device-abc" {
		t.Errorf("Expected device device-abc, got %s", claims.DeviceID)
	}
	if claims.Issuer != "mifiado" {
		t.Errorf("Expected issuer mifiado, got %s", claims.Issuer)
	}
}

func TestTokenAuth_ValidateToken_WrongSecret(t *testing.T) {
	auth1 := NewTokenAuth("", "secret-1")
	auth2 := NewTokenAuth("", "secret-2")

	token, err := auth1.GenerateToken("7", "device", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := auth2.ValidateToken(token); err == nil {
		t.Error("Expected validation to fail with a different secret")
	}
}

func TestTokenAuth_ValidateToken_Expired(t *testing.T) {
	auth := NewTokenAuth("", "test-secret")

	token, err := auth.GenerateToken("7", "device", -time.Minute)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := auth.ValidateToken(token); err == nil {
		t.Error("Expected validation to fail for expired token")
	}
}

func TestTokenAuth_Authorize_SharedKey(t *testing.T) {
	auth := NewTokenAuth("shared-api-key", "test-secret")

	r := httptest.NewRequest("GET", "/api/sync?userId=7", nil)
	r.Header.Set("Authorization", "Bearer shared-api-key")

	claims, err := auth.Authorize(r)
	if err != nil {
		t.Fatalf("Shared key should authorize: %v", err)
	}
	if claims != nil {
		t.Error("Shared key path should not produce claims")
	}
}

func TestTokenAuth_Authorize_IssuedToken(t *testing.T) {
	auth := NewTokenAuth("shared-api-key", "test-secret")
	token, err := auth.GenerateToken("7", "device-1", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	r := httptest.NewRequest("GET", "/api/sync?userId=7", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	claims, err := auth.Authorize(r)
	if err != nil {
		t.Fatalf("Issued token should authorize: %v", err)
	}
	if claims == nil || claims.Subject != "7" {
		t.Errorf("Expected claims with subject 7, got %+v", claims)
	}
}

func TestTokenAuth_Authorize_Rejections(t *testing.T) {
	auth := NewTokenAuth("shared-api-key", "test-secret")

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"wrong key", "Bearer not-the-key"},
		{"two-part credential", "Bearer aaa.bbb"},
		{"garbage three-part", "Bearer aaa.bbb.ccc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/sync", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			if _, err := auth.Authorize(r); err == nil {
				t.Error("Expected authorization to fail")
			}
		})
	}
}

func TestTokenAuth_Authorize_EmptySharedKeyDisablesStaticPath(t *testing.T) {
	auth := NewTokenAuth("", "test-secret")

	r := httptest.NewRequest("GET", "/api/sync", nil)
	r.Header.Set("Authorization", "Bearer ")

	if _, err := auth.Authorize(r); err == nil {
		t.Error("Empty credential must not match an empty shared key")
	}
}
