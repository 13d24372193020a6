package auth

import (
	"context"
	"testing"
)

func TestAuthContextRoundTrip(t *testing.T) {
	ctx := SetAuthContext(context.Background(), "42", "device-a")

	userID, ok := GetUserID(ctx)
	if !ok || userID != "42" {
		t.Errorf("Expected user 42, got %q (ok=%v)", userID, ok)
	}
	deviceID, ok := GetDeviceID(ctx)
	if !ok || deviceID != "device-a" {
		t.Errorf("Expected device device-a, got %q (ok=%v)", deviceID, ok)
	}
}

func TestAuthContextAbsent(t *testing.T) {
	if _, ok := GetUserID(context.Background()); ok {
		t.Error("Empty context must not yield a user ID")
	}
	if _, ok := GetDeviceID(context.Background()); ok {
		t.Error("Empty context must not yield a device ID")
	}
}
