package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"floracore/pkg/domain"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floracore.db")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	var order domain.Order
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.AddFlowers("Red Roses", 24); err != nil {
			return err
		}
		order, err = tx.CreateOrder(domain.Order{From: "Shop", To: "Alice", Address: "1 Main St"}, []domain.OrderItem{
			{Flower: "Red Roses", Amount: 5},
		})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	err = reopened.View(context.Background(), func(view domain.TransactionView) error {
		stock, ok := view.FindFlowerStockByName("Red Roses")
		if !ok {
			t.Fatalf("expected stock to survive reopen")
		}
		if stock.Amount != 19 {
			t.Fatalf("expected decremented amount 19, got %d", stock.Amount)
		}
		restored, ok := view.FindOrder(order.ID)
		if !ok {
			t.Fatalf("expected order to survive reopen")
		}
		if restored.Status != domain.StatusNew {
			t.Fatalf("expected status New, got %s", restored.Status)
		}
		if got := len(view.ListOrderItems(order.ID)); got != 1 {
			t.Fatalf("expected one order item, got %d", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStoreFailedTransactionNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floracore.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.AddFlowers("Red Roses", 24); err != nil {
			return err
		}
		_, err := tx.AddFlowers("White Lilies", -1)
		return err
	})
	if err == nil {
		t.Fatalf("expected failed transaction")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	err = reopened.View(context.Background(), func(view domain.TransactionView) error {
		if got := len(view.ListFlowers()); got != 0 {
			t.Fatalf("expected empty warehouse, got %d records", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
