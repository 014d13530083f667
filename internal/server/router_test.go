package server

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/yang-catalog/catalog-cache/internal/kv"
)

func TestNewAppRequiresLogger(t *testing.T) {
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("expected error without logger")
	}
}

func TestRouterSetsRequestID(t *testing.T) {
	app := newTestApp(t)
	app.Get("/ping", func(c fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	reqID := resp.Header.Get("X-Request-ID")
	if reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != reqID {
		t.Fatalf("handler should see the same request id, got %q vs %q", body, reqID)
	}
}

func TestRouterMapsUnavailableTo503(t *testing.T) {
	app := newTestApp(t)
	app.Get("/down", func(c fiber.Ctx) error {
		return fmt.Errorf("get module: %w", kv.Unavailable("get", errors.New("connection refused")))
	})
	app.Get("/boom", func(c fiber.Ctx) error {
		return errors.New("boom")
	})
	app.Get("/panic", func(c fiber.Ctx) error {
		panic("unexpected")
	})

	cases := map[string]int{
		"/down":  fiber.StatusServiceUnavailable,
		"/boom":  fiber.StatusInternalServerError,
		"/panic": fiber.StatusInternalServerError,
	}
	for path, want := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("app.Test %s failed: %v", path, err)
		}
		if resp.StatusCode != want {
			t.Fatalf("%s: expected %d, got %d", path, want, resp.StatusCode)
		}
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app, err := NewApp(AppOptions{Logger: logger})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}
