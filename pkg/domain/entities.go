// Package domain defines the flower-shop entities, the change log captured by
// transactions, and the rule outcomes evaluated before a commit.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies a domain entity kind in changes and violations.
type EntityType string

// Entity kinds tracked by the store.
const (
	EntityFlowerStock EntityType = "flower_stock"
	EntityWriteoff    EntityType = "writeoff"
	EntityNote        EntityType = "note"
	EntityOrder       EntityType = "order"
	EntityOrderItem   EntityType = "order_item"
	EntityUser        EntityType = "user"
)

// OrderStatus captures an order's position in the delivery lifecycle.
type OrderStatus string

// Canonical order statuses. Deleted is reachable from any state; the other
// four form the forward progression New -> Assembled -> Sent -> Finished.
const (
	StatusNew       OrderStatus = "New"
	StatusAssembled OrderStatus = "Assembled"
	StatusSent      OrderStatus = "Sent"
	StatusFinished  OrderStatus = "Finished"
	StatusDeleted   OrderStatus = "Deleted"
)

// Valid reports whether s is one of the canonical statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusNew, StatusAssembled, StatusSent, StatusFinished, StatusDeleted:
		return true
	}
	return false
}

// forwardSteps maps each status to its documented next step.
var forwardSteps = map[OrderStatus]OrderStatus{
	StatusNew:       StatusAssembled,
	StatusAssembled: StatusSent,
	StatusSent:      StatusFinished,
}

// ForwardTransition reports whether from -> to is a documented forward step or
// a move to Deleted. The store never rejects other transitions; rules flag
// them as warnings instead.
func ForwardTransition(from, to OrderStatus) bool {
	if to == StatusDeleted {
		return true
	}
	return forwardSteps[from] == to
}

// FlowerStock is a warehouse record for one flower variety. The flower name
// acts as the natural key: write-offs and order items reference stock by name,
// not by id, so renaming a record orphans its history.
type FlowerStock struct {
	ID        int       `json:"id"`
	Flower    string    `json:"flower"`
	Amount    int       `json:"amount"`
	UpdatedAt time.Time `json:"dateTime"`
}

// Writeoff is an append-only disposal log entry. It is never updated.
type Writeoff struct {
	ID         int       `json:"id"`
	Flower     string    `json:"flower"`
	Amount     int       `json:"amount"`
	RecordedAt time.Time `json:"dateTime"`
}

// Note is a free-form staff note with no relationship to other entities.
type Note struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"dateTime"`
}

// Order is a customer delivery order. Deletion never removes the row; it sets
// Status to Deleted.
type Order struct {
	ID          int         `json:"id"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	Address     string      `json:"address"`
	ScheduledAt time.Time   `json:"dateTime"`
	Notes       *string     `json:"notes"`
	Status      OrderStatus `json:"status"`
}

// OrderItem is one flower line of an order. Items are created with their order
// and wholesale replaced on edit, never patched individually.
type OrderItem struct {
	ID      int    `json:"id"`
	OrderID int    `json:"orderId"`
	Flower  string `json:"flower"`
	Amount  int    `json:"amount"`
}

// User exists in the data model but is not exposed by any route.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// OrderPatch carries a partial order update. Nil fields are left untouched.
// Notes needs the extra NotesSet flag because an explicit null clears the
// notes while an absent field preserves them.
type OrderPatch struct {
	From        *string
	To          *string
	Address     *string
	ScheduledAt *time.Time
	Notes       *string
	NotesSet    bool
	Status      *OrderStatus
}

// Apply merges the patch onto an order in place.
func (p OrderPatch) Apply(o *Order) {
	if p.From != nil {
		o.From = *p.From
	}
	if p.To != nil {
		o.To = *p.To
	}
	if p.Address != nil {
		o.Address = *p.Address
	}
	if p.ScheduledAt != nil {
		o.ScheduledAt = *p.ScheduledAt
	}
	if p.NotesSet {
		o.Notes = p.Notes
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
}

// FlowerStockPatch carries a partial stock update. Nil fields are untouched.
type FlowerStockPatch struct {
	Flower *string
	Amount *int
}

// Apply merges the patch onto a stock record in place.
func (p FlowerStockPatch) Apply(f *FlowerStock) {
	if p.Flower != nil {
		f.Flower = *p.Flower
	}
	if p.Amount != nil {
		f.Amount = *p.Amount
	}
}

// NotePatch carries a partial note update.
type NotePatch struct {
	Title   *string
	Content *string
}

// Apply merges the patch onto a note in place.
func (p NotePatch) Apply(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
}

// NotFoundError reports that a referenced id does not exist for an entity.
type NotFoundError struct {
	Entity EntityType
	ID     int
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Change describes a mutation applied to an entity during a transaction.
// Changes are appended in application order; rules rely on that ordering to
// pair consumption entries with the stock adjustments that follow them.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the CRUD operations captured in the change log.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior.
const (
	// SeverityBlock aborts the transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn allows the commit and surfaces a warning to the caller.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a rule finding.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity,omitempty"`
	EntityID int        `json:"entityId,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking reports whether the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the warn-severity findings in evaluation order.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
