package core

import (
	"context"

	"floracore/internal/infra/persistence/memory"
)

// Service exposes the transactional shop operations: warehouse stock,
// write-offs, notes, orders with their items, and users. Every write runs
// inside a store transaction and reports rule findings alongside the result.
type Service struct {
	store PersistentStore
	opts  serviceOptions
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, options ...ServiceOption) *Service {
	opts := defaultServiceOptions()
	for _, opt := range options {
		opt(&opts)
	}
	return &Service{store: store, opts: opts}
}

// NewInMemoryService creates a service over a fresh in-memory store using the
// given rules engine.
func NewInMemoryService(engine *RulesEngine, options ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), options...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// run wraps a transaction with tracing, metrics, and warning logs.
func (s *Service) run(ctx context.Context, operation string, fn func(Transaction) error) (Result, error) {
	start := s.opts.clock()
	ctx, span := s.opts.tracer.Start(ctx, operation)
	res, err := s.store.RunInTransaction(ctx, fn)
	span.End(err)
	s.opts.metrics.Observe(ctx, operation, err == nil, s.opts.clock().Sub(start))
	if err != nil {
		s.opts.logger.Error("operation failed", "operation", operation, "error", err)
		return res, err
	}
	for _, warning := range res.Warnings() {
		s.opts.logger.Warn("rule warning", "operation", operation, "rule", warning.Rule, "message", warning.Message)
	}
	return res, nil
}

// view wraps a read-only snapshot access with tracing and metrics.
func (s *Service) view(ctx context.Context, operation string, fn func(TransactionView) error) error {
	start := s.opts.clock()
	ctx, span := s.opts.tracer.Start(ctx, operation)
	err := s.store.View(ctx, fn)
	span.End(err)
	s.opts.metrics.Observe(ctx, operation, err == nil, s.opts.clock().Sub(start))
	return err
}

// ListFlowers returns warehouse stock ordered by ascending id.
func (s *Service) ListFlowers(ctx context.Context) ([]FlowerStock, error) {
	var out []FlowerStock
	err := s.view(ctx, "list_flowers", func(view TransactionView) error {
		out = view.ListFlowers()
		return nil
	})
	return out, err
}

// GetFlower returns one warehouse record.
func (s *Service) GetFlower(ctx context.Context, id int) (FlowerStock, error) {
	var out FlowerStock
	err := s.view(ctx, "get_flower", func(view TransactionView) error {
		f, ok := view.FindFlowerStock(id)
		if !ok {
			return NotFoundError{Entity: EntityFlowerStock, ID: id}
		}
		out = f
		return nil
	})
	return out, err
}

// AddFlowers upserts stock by flower name.
func (s *Service) AddFlowers(ctx context.Context, name string, amount int) (FlowerStock, Result, error) {
	var created FlowerStock
	res, err := s.run(ctx, "add_flowers", func(tx Transaction) error {
		var err error
		created, err = tx.AddFlowers(name, amount)
		return err
	})
	return created, res, err
}

// UpdateFlowerStock applies a partial edit to a warehouse record.
func (s *Service) UpdateFlowerStock(ctx context.Context, id int, patch FlowerStockPatch) (FlowerStock, Result, error) {
	var updated FlowerStock
	res, err := s.run(ctx, "update_flower_stock", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateFlowerStock(id, func(f *FlowerStock) error {
			patch.Apply(f)
			return nil
		})
		return err
	})
	return updated, res, err
}

// ListWriteoffs returns the disposal log, newest first.
func (s *Service) ListWriteoffs(ctx context.Context) ([]Writeoff, error) {
	var out []Writeoff
	err := s.view(ctx, "list_writeoffs", func(view TransactionView) error {
		out = view.ListWriteoffs()
		return nil
	})
	return out, err
}

// AddWriteoff records a disposal and decrements matching stock clamped at
// zero. Shortfalls and unmatched names surface as warnings in the result.
func (s *Service) AddWriteoff(ctx context.Context, name string, amount int) (Writeoff, Result, error) {
	var created Writeoff
	res, err := s.run(ctx, "add_writeoff", func(tx Transaction) error {
		var err error
		created, err = tx.AddWriteoff(name, amount)
		return err
	})
	return created, res, err
}

// ListNotes returns staff notes, newest first.
func (s *Service) ListNotes(ctx context.Context) ([]Note, error) {
	var out []Note
	err := s.view(ctx, "list_notes", func(view TransactionView) error {
		out = view.ListNotes()
		return nil
	})
	return out, err
}

// GetNote returns one note.
func (s *Service) GetNote(ctx context.Context, id int) (Note, error) {
	var out Note
	err := s.view(ctx, "get_note", func(view TransactionView) error {
		n, ok := view.FindNote(id)
		if !ok {
			return NotFoundError{Entity: EntityNote, ID: id}
		}
		out = n
		return nil
	})
	return out, err
}

// AddNote persists a new note.
func (s *Service) AddNote(ctx context.Context, title, content string) (Note, Result, error) {
	var created Note
	res, err := s.run(ctx, "add_note", func(tx Transaction) error {
		var err error
		created, err = tx.CreateNote(Note{Title: title, Content: content})
		return err
	})
	return created, res, err
}

// UpdateNote applies a partial edit to a note.
func (s *Service) UpdateNote(ctx context.Context, id int, patch NotePatch) (Note, Result, error) {
	var updated Note
	res, err := s.run(ctx, "update_note", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateNote(id, func(n *Note) error {
			patch.Apply(n)
			return nil
		})
		return err
	})
	return updated, res, err
}

// DeleteNote removes a note. Notes are the only entity with a true delete.
func (s *Service) DeleteNote(ctx context.Context, id int) (Result, error) {
	return s.run(ctx, "delete_note", func(tx Transaction) error {
		return tx.DeleteNote(id)
	})
}

// ListOrders returns all orders, Deleted included, newest first.
func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	err := s.view(ctx, "list_orders", func(view TransactionView) error {
		out = view.ListOrders()
		return nil
	})
	return out, err
}

// GetOrder returns one order.
func (s *Service) GetOrder(ctx context.Context, id int) (Order, error) {
	var out Order
	err := s.view(ctx, "get_order", func(view TransactionView) error {
		o, ok := view.FindOrder(id)
		if !ok {
			return NotFoundError{Entity: EntityOrder, ID: id}
		}
		out = o
		return nil
	})
	return out, err
}

// GetOrderItems returns an order's line items ordered by ascending id.
func (s *Service) GetOrderItems(ctx context.Context, orderID int) ([]OrderItem, error) {
	var out []OrderItem
	err := s.view(ctx, "get_order_items", func(view TransactionView) error {
		if _, ok := view.FindOrder(orderID); !ok {
			return NotFoundError{Entity: EntityOrder, ID: orderID}
		}
		out = view.ListOrderItems(orderID)
		return nil
	})
	return out, err
}

// CreateOrder persists an order with its items in one transaction. Stock is
// decremented per item clamped at zero.
func (s *Service) CreateOrder(ctx context.Context, order Order, items []OrderItem) (Order, Result, error) {
	var created Order
	res, err := s.run(ctx, "create_order", func(tx Transaction) error {
		var err error
		created, err = tx.CreateOrder(order, items)
		return err
	})
	return created, res, err
}

// UpdateOrder applies a partial edit to an order and, when items is non-empty,
// replaces the item set wholesale in the same transaction. Replaced items give
// their amounts back to stock before the new set is charged.
func (s *Service) UpdateOrder(ctx context.Context, id int, patch OrderPatch, items []OrderItem) (Order, Result, error) {
	var updated Order
	res, err := s.run(ctx, "update_order", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateOrder(id, func(o *Order) error {
			patch.Apply(o)
			return nil
		})
		if err != nil {
			return err
		}
		if len(items) > 0 {
			if _, err := tx.ReplaceOrderItems(id, items); err != nil {
				return err
			}
		}
		return nil
	})
	return updated, res, err
}

// UpdateOrderStatus moves an order to the given status. Any valid status is
// accepted; non-forward moves commit with a warning.
func (s *Service) UpdateOrderStatus(ctx context.Context, id int, status OrderStatus) (Order, Result, error) {
	var updated Order
	res, err := s.run(ctx, "update_order_status", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateOrder(id, func(o *Order) error {
			o.Status = status
			return nil
		})
		return err
	})
	return updated, res, err
}

// DeleteOrder marks an order Deleted. The row and its items survive so the
// history stays queryable.
func (s *Service) DeleteOrder(ctx context.Context, id int) (Order, Result, error) {
	return s.UpdateOrderStatus(ctx, id, StatusDeleted)
}

// CreateUser persists a user with a unique username.
func (s *Service) CreateUser(ctx context.Context, user User) (User, Result, error) {
	var created User
	res, err := s.run(ctx, "create_user", func(tx Transaction) error {
		var err error
		created, err = tx.CreateUser(user)
		return err
	})
	return created, res, err
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id int) (User, error) {
	var out User
	err := s.view(ctx, "get_user", func(view TransactionView) error {
		u, ok := view.FindUser(id)
		if !ok {
			return NotFoundError{Entity: EntityUser, ID: id}
		}
		out = u
		return nil
	})
	return out, err
}

// GetUserByUsername returns the user owning the given username.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var out User
	err := s.view(ctx, "get_user_by_username", func(view TransactionView) error {
		u, ok := view.FindUserByUsername(username)
		if !ok {
			return NotFoundError{Entity: EntityUser}
		}
		out = u
		return nil
	})
	return out, err
}

// Seed loads the starter inventory and notes when the store is empty. It is
// a no-op on a populated store so restarts never duplicate data.
func (s *Service) Seed(ctx context.Context) error {
	var empty bool
	if err := s.view(ctx, "seed_check", func(view TransactionView) error {
		empty = len(view.ListFlowers()) == 0 && len(view.ListNotes()) == 0
		return nil
	}); err != nil {
		return err
	}
	if !empty {
		return nil
	}
	_, err := s.run(ctx, "seed", func(tx Transaction) error {
		for _, stock := range []struct {
			name   string
			amount int
		}{
			{"Red Roses", 24},
			{"White Lilies", 18},
			{"Pink Carnations", 30},
			{"Yellow Tulips", 15},
		} {
			if _, err := tx.AddFlowers(stock.name, stock.amount); err != nil {
				return err
			}
		}
		for _, note := range []Note{
			{
				Title:   "Weekly Supplier Meeting",
				Content: "Meeting with rose supplier scheduled for Friday at 2pm. Need to discuss increased orders for upcoming wedding season.",
			},
			{
				Title:   "Store Closing Early",
				Content: "The store will be closing at 4pm next Monday for staff training. Ensure all deliveries are scheduled before 3pm.",
			},
		} {
			if _, err := tx.CreateNote(note); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		s.opts.logger.Info("seeded starter inventory and notes")
	}
	return err
}
