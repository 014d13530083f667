package kv

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestWaitReadyRetriesUntilPingSucceeds(t *testing.T) {
	down := Unavailable("ping", errors.New("refused"))
	stub := &stubBackend{pingErrs: []error{down, down}}

	if err := WaitReady(context.Background(), stub, time.Millisecond, 5, quietLogger()); err != nil {
		t.Fatalf("wait should succeed: %v", err)
	}
	if stub.pings != 3 {
		t.Fatalf("expected 3 pings, got %d", stub.pings)
	}
}

func TestWaitReadyGivesUpAfterAttempts(t *testing.T) {
	down := Unavailable("ping", errors.New("refused"))
	stub := &stubBackend{pingErrs: []error{down, down, down}}

	err := WaitReady(context.Background(), stub, time.Millisecond, 2, quietLogger())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if stub.pings != 2 {
		t.Fatalf("expected 2 pings, got %d", stub.pings)
	}
}

func TestWaitReadyStopsOnContext(t *testing.T) {
	down := Unavailable("ping", errors.New("refused"))
	stub := &stubBackend{pingErrs: []error{down, down, down, down}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitReady(ctx, stub, time.Hour, 0, quietLogger())
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable wrapping context.Canceled, got %v", err)
	}
	if stub.pings != 1 {
		t.Fatalf("cancelled wait should ping once, got %d", stub.pings)
	}
}

func TestWaitReadyUnlimitedAttemptsUntilDeadline(t *testing.T) {
	down := Unavailable("ping", errors.New("refused"))
	stub := &stubBackend{pingErrs: []error{down, down, down, down, down, down, down, down}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := WaitReady(ctx, stub, 50*time.Millisecond, 0, quietLogger())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if stub.pings != 1 {
		t.Fatalf("expected a single ping before the deadline, got %d", stub.pings)
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
