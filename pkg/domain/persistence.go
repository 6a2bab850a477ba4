package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. The cross-entity consistency rules
// (clamp-at-zero inventory decrements, delete-as-status-change, wholesale item
// replacement) live behind these methods so every caller gets them.
type Transaction interface {
	Snapshot() TransactionView

	// AddFlowers upserts stock by flower name: an existing record gains
	// amount, a new record is created otherwise.
	AddFlowers(name string, amount int) (FlowerStock, error)
	UpdateFlowerStock(id int, mutator func(*FlowerStock) error) (FlowerStock, error)

	// AddWriteoff always records the write-off; matching stock is
	// decremented clamped at zero, unmatched names leave stock untouched.
	AddWriteoff(name string, amount int) (Writeoff, error)

	CreateNote(Note) (Note, error)
	UpdateNote(id int, mutator func(*Note) error) (Note, error)
	DeleteNote(id int) error

	// CreateOrder stores the order plus its items and applies one
	// clamp-at-zero decrement per item, all inside the transaction.
	CreateOrder(order Order, items []OrderItem) (Order, error)
	UpdateOrder(id int, mutator func(*Order) error) (Order, error)
	// ReplaceOrderItems restores the removed items' amounts to stock,
	// deletes them, then creates the new set with fresh decrements.
	ReplaceOrderItems(orderID int, items []OrderItem) ([]OrderItem, error)

	CreateUser(User) (User, error)

	FindFlowerStock(id int) (FlowerStock, bool)
	FindFlowerStockByName(name string) (FlowerStock, bool)
	FindOrder(id int) (Order, bool)
	FindNote(id int) (Note, bool)
}

// TransactionView provides read-only access to a consistent snapshot. It
// extends RuleView so the same snapshot can be handed to the rules engine.
// List orderings match the API contract: flowers ascend by id, the dated
// entities descend by timestamp.
type TransactionView interface {
	RuleView
	ListNotes() []Note
	FindWriteoff(id int) (Writeoff, bool)
	FindNote(id int) (Note, bool)
	FindUser(id int) (User, bool)
	FindUserByUsername(username string) (User, bool)
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
