package routes

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/yang-catalog/catalog-cache/internal/kv"
)

func TestBackendsListsRegisteredDrivers(t *testing.T) {
	h := newAdminHarness(t, nil)

	resp, err := h.app.Test(httptest.NewRequest("GET", "/-/backends", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var payload struct {
		Backends []backendPayload `json:"backends"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var active *backendPayload
	for i := range payload.Backends {
		if payload.Backends[i].Active {
			active = &payload.Backends[i]
		}
	}
	if active == nil || active.Key != "file" {
		t.Fatalf("file backend should be marked active: %+v", payload.Backends)
	}
	if active.AtomicBatch {
		t.Fatalf("file backend does not provide atomic batches")
	}
}

func TestEncodeBackendsMarksActive(t *testing.T) {
	drivers := []kv.Driver{
		{Key: "redis", AtomicBatch: true},
		{Key: "sqlite", AtomicBatch: true},
	}
	encoded := encodeBackends(drivers, "sqlite")
	if len(encoded) != 2 || encoded[0].Active || !encoded[1].Active {
		t.Fatalf("unexpected encoding: %+v", encoded)
	}
	if encodeBackends(nil, "redis") != nil {
		t.Fatalf("no drivers should encode to nil")
	}
}

func TestHealthz(t *testing.T) {
	h := newAdminHarness(t, nil)
	resp, err := h.app.Test(httptest.NewRequest("GET", "/-/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	down := newAdminHarness(t, unavailableBackend{})
	resp, err = down.app.Test(httptest.NewRequest("GET", "/-/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newAdminHarness(t, nil)
	resp, err := h.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("expected prometheus exposition, got %s", body)
	}
}
