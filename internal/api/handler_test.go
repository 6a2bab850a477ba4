package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"floracore/internal/core"
	"floracore/internal/reports"
)

func newTestServer(t *testing.T) (*httptest.Server, *core.Service) {
	t.Helper()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	handler := NewHandler(svc)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, svc
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

func TestFlowerEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/flowers", map[string]any{"flower": "Red Roses", "amount": 24})
	wantStatus(t, resp, http.StatusCreated)
	created := decode[map[string]any](t, resp)
	if created["flower"] != "Red Roses" || created["amount"] != float64(24) {
		t.Fatalf("unexpected created flower %v", created)
	}

	// upsert by name keeps one record
	resp = doJSON(t, http.MethodPost, server.URL+"/api/flowers", map[string]any{"flower": "Red Roses", "amount": 6})
	wantStatus(t, resp, http.StatusCreated)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+"/api/flowers", nil)
	wantStatus(t, resp, http.StatusOK)
	list := decode[[]map[string]any](t, resp)
	if len(list) != 1 || list[0]["amount"] != float64(30) {
		t.Fatalf("expected single upserted record with 30, got %v", list)
	}

	id := int(list[0]["id"].(float64))
	resp = doJSON(t, http.MethodPut, server.URL+fmt.Sprintf("/api/flowers/%d", id), map[string]any{"amount": 12})
	wantStatus(t, resp, http.StatusOK)
	updated := decode[map[string]any](t, resp)
	if updated["amount"] != float64(12) {
		t.Fatalf("expected direct edit to 12, got %v", updated["amount"])
	}

	resp = doJSON(t, http.MethodPut, server.URL+"/api/flowers/999", map[string]any{"amount": 1})
	wantStatus(t, resp, http.StatusNotFound)
	msg := decode[map[string]string](t, resp)
	if msg["message"] != "Flower not found" {
		t.Fatalf("unexpected 404 body %v", msg)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/flowers", map[string]any{"flower": "", "amount": 0})
	wantStatus(t, resp, http.StatusBadRequest)
	bad := decode[map[string][]FieldError](t, resp)
	if len(bad["errors"]) != 2 {
		t.Fatalf("expected two field errors, got %v", bad["errors"])
	}
}

func TestWriteoffShortfallSetsWarningHeader(t *testing.T) {
	server, svc := newTestServer(t)
	ctx := context.Background()
	if _, _, err := svc.AddFlowers(ctx, "Red Roses", 24); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	resp := doJSON(t, http.MethodPost, server.URL+"/api/orders", map[string]any{
		"order": map[string]any{
			"from":     "Shop",
			"to":       "Alice",
			"address":  "1 Main St",
			"dateTime": time.Now().UTC().Format(time.RFC3339),
		},
		"items": []map[string]any{{"flower": "Red Roses", "amount": 5}},
	})
	wantStatus(t, resp, http.StatusCreated)
	order := decode[map[string]any](t, resp)
	orderID := int(order["id"].(float64))

	resp = doJSON(t, http.MethodPut, server.URL+fmt.Sprintf("/api/orders/%d/status", orderID), map[string]any{"status": "Assembled"})
	wantStatus(t, resp, http.StatusOK)
	if resp.Header.Get(WarningHeader) != "" {
		t.Fatalf("forward transition must not warn")
	}
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodPost, server.URL+"/api/writeoffs", map[string]any{"flower": "Red Roses", "amount": 100})
	wantStatus(t, resp, http.StatusCreated)
	if resp.Header.Get(WarningHeader) == "" {
		t.Fatalf("expected shortfall warning header")
	}
	writeoff := decode[map[string]any](t, resp)
	if writeoff["amount"] != float64(100) {
		t.Fatalf("writeoff must record requested amount, got %v", writeoff["amount"])
	}

	flower, err := svc.GetFlower(ctx, 1)
	if err != nil {
		t.Fatalf("get flower: %v", err)
	}
	if flower.Amount != 0 {
		t.Fatalf("expected clamped stock 0, got %d", flower.Amount)
	}
}

func TestNoteEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/notes", map[string]any{"title": "Reminder", "content": "Water the tulips"})
	wantStatus(t, resp, http.StatusCreated)
	note := decode[map[string]any](t, resp)
	id := int(note["id"].(float64))

	resp = doJSON(t, http.MethodPut, server.URL+fmt.Sprintf("/api/notes/%d", id), map[string]any{"content": "Water the tulips twice"})
	wantStatus(t, resp, http.StatusOK)
	updated := decode[map[string]any](t, resp)
	if updated["content"] != "Water the tulips twice" || updated["title"] != "Reminder" {
		t.Fatalf("unexpected patched note %v", updated)
	}

	resp = doJSON(t, http.MethodDelete, server.URL+fmt.Sprintf("/api/notes/%d", id), nil)
	wantStatus(t, resp, http.StatusOK)
	deleted := decode[map[string]bool](t, resp)
	if !deleted["success"] {
		t.Fatalf("expected success body")
	}

	resp = doJSON(t, http.MethodDelete, server.URL+fmt.Sprintf("/api/notes/%d", id), nil)
	wantStatus(t, resp, http.StatusNotFound)
	_ = resp.Body.Close()
}

func TestOrderUpdateNotesNullVersusAbsent(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/orders", map[string]any{
		"order": map[string]any{
			"from":     "Shop",
			"to":       "Alice",
			"address":  "1 Main St",
			"dateTime": time.Now().UTC().Format(time.RFC3339),
			"notes":    "ring the bell",
		},
		"items": []map[string]any{},
	})
	wantStatus(t, resp, http.StatusCreated)
	order := decode[map[string]any](t, resp)
	id := int(order["id"].(float64))

	// absent notes field preserves notes
	resp = doJSON(t, http.MethodPut, server.URL+fmt.Sprintf("/api/orders/%d", id), map[string]any{
		"order": map[string]any{"to": "Bob"},
	})
	wantStatus(t, resp, http.StatusOK)
	updated := decode[map[string]any](t, resp)
	if updated["notes"] != "ring the bell" {
		t.Fatalf("expected preserved notes, got %v", updated["notes"])
	}
	if updated["to"] != "Bob" {
		t.Fatalf("expected patched recipient, got %v", updated["to"])
	}

	// explicit null clears notes
	resp = doJSON(t, http.MethodPut, server.URL+fmt.Sprintf("/api/orders/%d", id), map[string]any{
		"order": map[string]any{"notes": nil},
	})
	wantStatus(t, resp, http.StatusOK)
	updated = decode[map[string]any](t, resp)
	if updated["notes"] != nil {
		t.Fatalf("expected cleared notes, got %v", updated["notes"])
	}
}

func TestOrderDeleteIsStatusChange(t *testing.T) {
	server, svc := newTestServer(t)
	ctx := context.Background()
	if _, _, err := svc.AddFlowers(ctx, "Red Roses", 24); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	resp := doJSON(t, http.MethodPost, server.URL+"/api/orders", map[string]any{
		"order": map[string]any{
			"from":     "Shop",
			"to":       "Alice",
			"address":  "1 Main St",
			"dateTime": time.Now().UTC().Format(time.RFC3339),
		},
		"items": []map[string]any{{"flower": "Red Roses", "amount": 5}},
	})
	wantStatus(t, resp, http.StatusCreated)
	order := decode[map[string]any](t, resp)
	id := int(order["id"].(float64))

	resp = doJSON(t, http.MethodDelete, server.URL+fmt.Sprintf("/api/orders/%d", id), nil)
	wantStatus(t, resp, http.StatusOK)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+fmt.Sprintf("/api/orders/%d", id), nil)
	wantStatus(t, resp, http.StatusOK)
	deleted := decode[map[string]any](t, resp)
	if deleted["status"] != "Deleted" {
		t.Fatalf("expected Deleted status, got %v", deleted["status"])
	}

	// deletion never restores inventory
	flower, err := svc.GetFlower(ctx, 1)
	if err != nil {
		t.Fatalf("get flower: %v", err)
	}
	if flower.Amount != 19 {
		t.Fatalf("expected stock to stay at 19, got %d", flower.Amount)
	}

	resp = doJSON(t, http.MethodGet, server.URL+fmt.Sprintf("/api/orders/%d/items", id), nil)
	wantStatus(t, resp, http.StatusOK)
	items := decode[[]map[string]any](t, resp)
	if len(items) != 1 {
		t.Fatalf("expected items to survive deletion, got %v", items)
	}
}

func TestOrderStatusValidation(t *testing.T) {
	server, svc := newTestServer(t)
	order, _, err := svc.CreateOrder(context.Background(), core.Order{From: "a", To: "b", Address: "c"}, nil)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	resp := doJSON(t, http.MethodPut, server.URL+fmt.Sprintf("/api/orders/%d/status", order.ID), map[string]any{"status": "Lost"})
	wantStatus(t, resp, http.StatusBadRequest)
	_ = resp.Body.Close()

	// backwards move commits but carries a warning header
	if _, _, err := svc.UpdateOrderStatus(context.Background(), order.ID, core.StatusSent); err != nil {
		t.Fatalf("advance status: %v", err)
	}
	resp = doJSON(t, http.MethodPut, server.URL+fmt.Sprintf("/api/orders/%d/status", order.ID), map[string]any{"status": "New"})
	wantStatus(t, resp, http.StatusOK)
	if resp.Header.Get(WarningHeader) == "" {
		t.Fatalf("expected transition warning header")
	}
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodPut, server.URL+"/api/orders/999/status", map[string]any{"status": "Sent"})
	wantStatus(t, resp, http.StatusNotFound)
	_ = resp.Body.Close()
}

func TestExportEndpoints(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	worker := reports.NewWorker(reports.NewBuilder(svc), nil, nil)
	worker.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = worker.Stop(ctx)
	})

	server := httptest.NewServer(NewHandler(svc, WithExportScheduler(worker)))
	t.Cleanup(server.Close)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/reports/exports", map[string]any{"report": "inventory"})
	wantStatus(t, resp, http.StatusAccepted)
	record := decode[map[string]any](t, resp)
	id, _ := record["id"].(string)
	if id == "" {
		t.Fatalf("expected export id, got %v", record)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/reports/exports/"+id, nil)
	wantStatus(t, resp, http.StatusOK)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+"/api/reports/exports/missing", nil)
	wantStatus(t, resp, http.StatusNotFound)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodPost, server.URL+"/api/reports/exports", map[string]any{"report": "ledger"})
	wantStatus(t, resp, http.StatusBadRequest)
	_ = resp.Body.Close()
}

func TestExportEndpointsUnconfigured(t *testing.T) {
	server, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, server.URL+"/api/reports/exports", map[string]any{"report": "inventory"})
	wantStatus(t, resp, http.StatusNotFound)
	_ = resp.Body.Close()
}
