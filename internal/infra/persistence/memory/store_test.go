package memory

import (
	"context"
	"testing"

	"floracore/pkg/domain"
)

func addStock(t *testing.T, store *Store, name string, amount int) domain.FlowerStock {
	t.Helper()
	var created domain.FlowerStock
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.AddFlowers(name, amount)
		return err
	})
	if err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	return created
}

func stockByName(t *testing.T, store *Store, name string) domain.FlowerStock {
	t.Helper()
	var out domain.FlowerStock
	err := store.View(context.Background(), func(view domain.TransactionView) error {
		stock, ok := view.FindFlowerStockByName(name)
		if !ok {
			t.Fatalf("stock %s missing", name)
		}
		out = stock
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	return out
}

func TestAddFlowersUpsertsByName(t *testing.T) {
	store := NewStore(nil)
	first := addStock(t, store, "Red Roses", 10)
	if first.ID == 0 {
		t.Fatalf("expected generated id")
	}
	second := addStock(t, store, "Red Roses", 5)
	if second.ID != first.ID {
		t.Fatalf("expected upsert to keep id %d, got %d", first.ID, second.ID)
	}
	if second.Amount != 15 {
		t.Fatalf("expected accumulated amount 15, got %d", second.Amount)
	}
	err := store.View(context.Background(), func(view domain.TransactionView) error {
		if got := len(view.ListFlowers()); got != 1 {
			t.Fatalf("expected single record, got %d", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestAddFlowersRejectsNonPositiveAmount(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AddFlowers("Red Roses", 0)
		return err
	})
	if err == nil {
		t.Fatalf("expected error for zero amount")
	}
}

func TestWriteoffClampsAtZero(t *testing.T) {
	store := NewStore(nil)
	addStock(t, store, "Red Roses", 10)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AddWriteoff("Red Roses", 100)
		return err
	})
	if err != nil {
		t.Fatalf("writeoff: %v", err)
	}
	if got := stockByName(t, store, "Red Roses").Amount; got != 0 {
		t.Fatalf("expected clamped stock 0, got %d", got)
	}
	err = store.View(context.Background(), func(view domain.TransactionView) error {
		writeoffs := view.ListWriteoffs()
		if len(writeoffs) != 1 {
			t.Fatalf("expected one writeoff, got %d", len(writeoffs))
		}
		if writeoffs[0].Amount != 100 {
			t.Fatalf("expected writeoff to record full amount 100, got %d", writeoffs[0].Amount)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestWriteoffUnmatchedNameLeavesStockUntouched(t *testing.T) {
	store := NewStore(nil)
	addStock(t, store, "Red Roses", 10)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AddWriteoff("Blue Orchids", 3)
		return err
	})
	if err != nil {
		t.Fatalf("writeoff: %v", err)
	}
	if got := stockByName(t, store, "Red Roses").Amount; got != 10 {
		t.Fatalf("expected stock untouched at 10, got %d", got)
	}
	err = store.View(context.Background(), func(view domain.TransactionView) error {
		if got := len(view.ListWriteoffs()); got != 1 {
			t.Fatalf("expected writeoff recorded, got %d", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestCreateOrderDecrementsStockPerItem(t *testing.T) {
	store := NewStore(nil)
	addStock(t, store, "Red Roses", 24)
	addStock(t, store, "White Lilies", 18)

	var created domain.Order
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateOrder(domain.Order{From: "Shop", To: "Alice", Address: "1 Main St"}, []domain.OrderItem{
			{Flower: "Red Roses", Amount: 5},
			{Flower: "White Lilies", Amount: 2},
		})
		return err
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if created.Status != domain.StatusNew {
		t.Fatalf("expected default status New, got %s", created.Status)
	}
	if got := stockByName(t, store, "Red Roses").Amount; got != 19 {
		t.Fatalf("expected 19 roses, got %d", got)
	}
	if got := stockByName(t, store, "White Lilies").Amount; got != 16 {
		t.Fatalf("expected 16 lilies, got %d", got)
	}
	err = store.View(context.Background(), func(view domain.TransactionView) error {
		items := view.ListOrderItems(created.ID)
		if len(items) != 2 {
			t.Fatalf("expected two items, got %d", len(items))
		}
		if items[0].OrderID != created.ID {
			t.Fatalf("expected items bound to order %d", created.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestCreateOrderItemAmountMustBePositive(t *testing.T) {
	store := NewStore(nil)
	addStock(t, store, "Red Roses", 24)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateOrder(domain.Order{From: "a", To: "b", Address: "c"}, []domain.OrderItem{
			{Flower: "Red Roses", Amount: 0},
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected error for non-positive item amount")
	}
	// the failed transaction must not have touched stock
	if got := stockByName(t, store, "Red Roses").Amount; got != 24 {
		t.Fatalf("expected stock unchanged at 24, got %d", got)
	}
	err = store.View(context.Background(), func(view domain.TransactionView) error {
		if got := len(view.ListOrders()); got != 0 {
			t.Fatalf("expected no order committed, got %d", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestReplaceOrderItemsRebalancesStock(t *testing.T) {
	store := NewStore(nil)
	addStock(t, store, "Red Roses", 24)
	addStock(t, store, "White Lilies", 18)

	var order domain.Order
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		order, err = tx.CreateOrder(domain.Order{From: "a", To: "b", Address: "c"}, []domain.OrderItem{
			{Flower: "Red Roses", Amount: 10},
		})
		return err
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if got := stockByName(t, store, "Red Roses").Amount; got != 14 {
		t.Fatalf("expected 14 roses after order, got %d", got)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.ReplaceOrderItems(order.ID, []domain.OrderItem{
			{Flower: "Red Roses", Amount: 4},
			{Flower: "White Lilies", Amount: 6},
		})
		return err
	})
	if err != nil {
		t.Fatalf("replace items: %v", err)
	}
	// 14 + 10 restored - 4 charged = 20
	if got := stockByName(t, store, "Red Roses").Amount; got != 20 {
		t.Fatalf("expected rebalanced roses 20, got %d", got)
	}
	if got := stockByName(t, store, "White Lilies").Amount; got != 12 {
		t.Fatalf("expected 12 lilies, got %d", got)
	}
	err = store.View(context.Background(), func(view domain.TransactionView) error {
		items := view.ListOrderItems(order.ID)
		if len(items) != 2 {
			t.Fatalf("expected replaced item set of 2, got %d", len(items))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpdateOrderRejectsUnknownStatus(t *testing.T) {
	store := NewStore(nil)
	var order domain.Order
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		order, err = tx.CreateOrder(domain.Order{From: "a", To: "b", Address: "c"}, nil)
		return err
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateOrder(order.ID, func(o *domain.Order) error {
			o.Status = "Lost"
			return nil
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected invalid status error")
	}
}

func TestNoteLifecycle(t *testing.T) {
	store := NewStore(nil)
	var note domain.Note
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		note, err = tx.CreateNote(domain.Note{Title: "Reminder", Content: "Water the tulips"})
		return err
	})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateNote(note.ID, func(n *domain.Note) error {
			n.Content = "Water the tulips twice"
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update note: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteNote(note.ID)
	})
	if err != nil {
		t.Fatalf("delete note: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteNote(note.ID)
	})
	if err == nil {
		t.Fatalf("expected not-found on second delete")
	}
}

func TestSnapshotRoundTripKeepsSequencesMonotonic(t *testing.T) {
	store := NewStore(nil)
	var note domain.Note
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		if note, err = tx.CreateNote(domain.Note{Title: "a", Content: "b"}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteNote(note.ID)
	})
	if err != nil {
		t.Fatalf("delete note: %v", err)
	}

	restored := NewStore(nil)
	restored.ImportState(store.ExportState())
	var second domain.Note
	_, err = restored.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		second, err = tx.CreateNote(domain.Note{Title: "c", Content: "d"})
		return err
	})
	if err != nil {
		t.Fatalf("create on restored store: %v", err)
	}
	if second.ID <= note.ID {
		t.Fatalf("expected id greater than %d after restore, got %d", note.ID, second.ID)
	}
}

func TestListOrderings(t *testing.T) {
	store := NewStore(nil)
	addStock(t, store, "B Flower", 1)
	addStock(t, store, "A Flower", 1)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, name := range []string{"first", "second"} {
			if _, err := tx.CreateNote(domain.Note{Title: name, Content: name}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create notes: %v", err)
	}
	err = store.View(context.Background(), func(view domain.TransactionView) error {
		flowers := view.ListFlowers()
		if len(flowers) != 2 || flowers[0].ID > flowers[1].ID {
			t.Fatalf("expected flowers ascending by id")
		}
		notes := view.ListNotes()
		if len(notes) != 2 {
			t.Fatalf("expected two notes")
		}
		if notes[0].UpdatedAt.Before(notes[1].UpdatedAt) {
			t.Fatalf("expected notes newest first")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateUser(domain.User{Username: "florist", Password: "x"}); err != nil {
			return err
		}
		_, err := tx.CreateUser(domain.User{Username: "florist", Password: "y"})
		return err
	})
	if err == nil {
		t.Fatalf("expected duplicate username error")
	}
}

func TestBlockingRuleAbortsCommit(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AddFlowers("Red Roses", 5)
		return err
	})
	if err == nil {
		t.Fatalf("expected rule violation error")
	}
	err = store.View(context.Background(), func(view domain.TransactionView) error {
		if got := len(view.ListFlowers()); got != 0 {
			t.Fatalf("expected aborted commit, found %d records", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(_ context.Context, _ domain.RuleView, _ []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}
