package core

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type metricObservation struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu           sync.Mutex
	observations []metricObservation
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	c.observations = append(c.observations, metricObservation{op: op, success: success})
	c.mu.Unlock()
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, obs := range c.observations {
		if obs.op == op && obs.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	mu    sync.Mutex
	ended []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.ended {
		if rec.op == op && (rec.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
	s.tracer.mu.Unlock()
}

func TestServiceObservesOperations(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := newTestService(t, WithMetricsRecorder(metrics), WithTracer(tracer))

	if _, _, err := svc.AddFlowers(ctx, "Red Roses", 10); err != nil {
		t.Fatalf("add flowers: %v", err)
	}
	if !metrics.has("add_flowers", true) {
		t.Fatalf("expected metrics entry for add_flowers success")
	}
	if !tracer.has("add_flowers", true) {
		t.Fatalf("expected trace span for add_flowers success")
	}

	if _, _, err := svc.UpdateFlowerStock(ctx, 99, FlowerStockPatch{}); err == nil {
		t.Fatalf("expected missing stock error")
	}
	if !metrics.has("update_flower_stock", false) {
		t.Fatalf("expected metrics entry for failed update_flower_stock")
	}
	if !tracer.has("update_flower_stock", false) {
		t.Fatalf("expected trace span for failed update_flower_stock")
	}
}

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	recorder.Observe(context.Background(), "add_flowers", true, 20*time.Millisecond)
	recorder.Observe(context.Background(), "add_flowers", false, 5*time.Millisecond)

	snapshot := recorder.Snapshot()
	if snapshot.DurationsMS["add_flowers"] <= 0 {
		t.Fatalf("expected accumulated duration, got %v", snapshot.DurationsMS)
	}
	if snapshot.Results["add_flowers"]["success"] != 1 || snapshot.Results["add_flowers"]["error"] != 1 {
		t.Fatalf("unexpected result counters %v", snapshot.Results)
	}
	if recorder.Name() == "" {
		t.Fatalf("expected generated expvar name")
	}
}

func TestJSONTraceTracerExports(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "create_order")
	span.End(nil)

	entries := tracer.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].Operation != "create_order" || entries[0].Status != "success" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	if !strings.Contains(buf.String(), "create_order") {
		t.Fatalf("expected encoded span in writer output")
	}
}
