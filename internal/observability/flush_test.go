package observability

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestFlushTelemetry_ClosesAll(t *testing.T) {
	var closed int
	c := closerFunc(func() error { closed++; return nil })
	if err := FlushTelemetry(context.Background(), zap.NewNop(), c, nil, c); err != nil {
		t.Fatalf("FlushTelemetry() error = %v", err)
	}
	if closed != 2 {
		t.Errorf("closed = %d, want 2", closed)
	}
}

func TestFlushTelemetry_ReportsCloseError(t *testing.T) {
	boom := errors.New("boom")
	err := FlushTelemetry(context.Background(), nil, closerFunc(func() error { return boom }))
	if !errors.Is(err, boom) {
		t.Errorf("FlushTelemetry() error = %v, want wrapping boom", err)
	}
}
