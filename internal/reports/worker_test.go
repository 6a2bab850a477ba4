package reports

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"floracore/internal/blob"
	"floracore/internal/core"
)

func newTestWorker(t *testing.T) (*Worker, *core.Service, blob.Store, *MemoryAuditLog) {
	t.Helper()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	store := blob.NewMemory()
	audit := NewMemoryAuditLog()
	worker := NewWorker(NewBuilder(svc), store, audit)
	worker.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = worker.Stop(ctx)
	})
	return worker, svc, store, audit
}

func waitForStatus(t *testing.T, worker *Worker, id string, want Status) Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		record, ok := worker.Get(id)
		if !ok {
			t.Fatalf("record %s missing", id)
		}
		if record.Status == want {
			return record
		}
		if record.Status == StatusFailed && want != StatusFailed {
			t.Fatalf("export failed: %s", record.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s", want)
	return Record{}
}

func TestWorkerExportsInventoryReport(t *testing.T) {
	ctx := context.Background()
	worker, svc, store, audit := newTestWorker(t)
	if _, _, err := svc.AddFlowers(ctx, "Red Roses", 24); err != nil {
		t.Fatalf("add flowers: %v", err)
	}

	record, err := worker.Enqueue(ctx, Input{Report: KindInventory, RequestedBy: "tester"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if record.Status != StatusQueued {
		t.Fatalf("expected queued record, got %s", record.Status)
	}
	if len(record.Formats) != 2 {
		t.Fatalf("expected default formats json+csv, got %v", record.Formats)
	}

	done := waitForStatus(t, worker, record.ID, StatusSucceeded)
	if len(done.Artifacts) != 2 {
		t.Fatalf("expected two artifacts, got %d", len(done.Artifacts))
	}
	if done.CompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}

	var sawCSV bool
	for _, artifact := range done.Artifacts {
		if artifact.Format != FormatCSV {
			continue
		}
		sawCSV = true
		_, rc, err := store.Get(ctx, artifact.Key)
		if err != nil {
			t.Fatalf("get artifact: %v", err)
		}
		payload, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read artifact: %v", err)
		}
		if !strings.Contains(string(payload), "Red Roses") {
			t.Fatalf("expected inventory row in csv, got %q", payload)
		}
	}
	if !sawCSV {
		t.Fatalf("expected a csv artifact")
	}

	entries := audit.Entries()
	if len(entries) == 0 {
		t.Fatalf("expected audit entries")
	}
	last := entries[len(entries)-1]
	if last.Status != StatusSucceeded || last.Actor != "tester" {
		t.Fatalf("unexpected final audit entry %+v", last)
	}
}

func TestWorkerRejectsUnknownReport(t *testing.T) {
	worker, _, _, _ := newTestWorker(t)
	if _, err := worker.Enqueue(context.Background(), Input{Report: "ledger"}); err == nil {
		t.Fatalf("expected unknown report error")
	}
}

func TestWorkerRejectsUnknownFormat(t *testing.T) {
	worker, _, _, _ := newTestWorker(t)
	if _, err := worker.Enqueue(context.Background(), Input{Report: KindOrders, Formats: []Format{"xml"}}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestWorkerListNewestFirst(t *testing.T) {
	ctx := context.Background()
	worker, _, _, _ := newTestWorker(t)
	first, err := worker.Enqueue(ctx, Input{Report: KindOrders})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	second, err := worker.Enqueue(ctx, Input{Report: KindWriteoffs})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForStatus(t, worker, first.ID, StatusSucceeded)
	waitForStatus(t, worker, second.ID, StatusSucceeded)

	records := worker.List()
	if len(records) != 2 {
		t.Fatalf("expected two records, got %d", len(records))
	}
}

func TestBuilderOrdersReportIncludesItems(t *testing.T) {
	ctx := context.Background()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	if _, _, err := svc.AddFlowers(ctx, "Red Roses", 24); err != nil {
		t.Fatalf("add flowers: %v", err)
	}
	if _, _, err := svc.CreateOrder(ctx, core.Order{From: "Shop", To: "Alice", Address: "1 Main St"}, []core.OrderItem{
		{Flower: "Red Roses", Amount: 5},
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	dataset, err := NewBuilder(svc).Build(ctx, KindOrders)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(dataset.Rows) != 1 {
		t.Fatalf("expected one row, got %d", len(dataset.Rows))
	}
	items, ok := dataset.Rows[0]["items"].([]string)
	if !ok || len(items) != 1 || !strings.Contains(items[0], "Red Roses") {
		t.Fatalf("unexpected items cell %v", dataset.Rows[0]["items"])
	}
}
