// Package memory provides the in-memory transactional implementation of the
// core persistence store, used directly for tests and ephemeral environments
// and embedded by the durable snapshotting backends.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"floracore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Bucket names shared with the snapshotting backends.
const (
	BucketWarehouse  = "warehouse"
	BucketWriteoffs  = "writeoffs"
	BucketNotes      = "notes"
	BucketOrders     = "orders"
	BucketOrderItems = "orderItems"
	BucketUsers      = "users"
)

type memoryState struct {
	flowers    map[int]domain.FlowerStock
	writeoffs  map[int]domain.Writeoff
	notes      map[int]domain.Note
	orders     map[int]domain.Order
	orderItems map[int]domain.OrderItem
	users      map[int]domain.User
	sequences  map[string]int
}

// Snapshot captures a point-in-time clone of the store state. Sequence
// counters ride along so ids stay monotonic across restarts even after
// deletes.
type Snapshot struct {
	Flowers    map[int]domain.FlowerStock `json:"warehouse"`
	Writeoffs  map[int]domain.Writeoff    `json:"writeoffs"`
	Notes      map[int]domain.Note        `json:"notes"`
	Orders     map[int]domain.Order       `json:"orders"`
	OrderItems map[int]domain.OrderItem   `json:"orderItems"`
	Users      map[int]domain.User        `json:"users"`
	Sequences  map[string]int             `json:"sequences"`
}

func newMemoryState() memoryState {
	return memoryState{
		flowers:    make(map[int]domain.FlowerStock),
		writeoffs:  make(map[int]domain.Writeoff),
		notes:      make(map[int]domain.Note),
		orders:     make(map[int]domain.Order),
		orderItems: make(map[int]domain.OrderItem),
		users:      make(map[int]domain.User),
		sequences:  make(map[string]int),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.flowers {
		cloned.flowers[k] = v
	}
	for k, v := range s.writeoffs {
		cloned.writeoffs[k] = v
	}
	for k, v := range s.notes {
		cloned.notes[k] = v
	}
	for k, v := range s.orders {
		cloned.orders[k] = cloneOrder(v)
	}
	for k, v := range s.orderItems {
		cloned.orderItems[k] = v
	}
	for k, v := range s.users {
		cloned.users[k] = v
	}
	for k, v := range s.sequences {
		cloned.sequences[k] = v
	}
	return cloned
}

// cloneOrder deep-copies the nullable notes pointer so a committed order can
// never be mutated through a retained reference.
func cloneOrder(o domain.Order) domain.Order {
	cp := o
	if o.Notes != nil {
		n := *o.Notes
		cp.Notes = &n
	}
	return cp
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Flowers:    make(map[int]domain.FlowerStock, len(state.flowers)),
		Writeoffs:  make(map[int]domain.Writeoff, len(state.writeoffs)),
		Notes:      make(map[int]domain.Note, len(state.notes)),
		Orders:     make(map[int]domain.Order, len(state.orders)),
		OrderItems: make(map[int]domain.OrderItem, len(state.orderItems)),
		Users:      make(map[int]domain.User, len(state.users)),
		Sequences:  make(map[string]int, len(state.sequences)),
	}
	for k, v := range state.flowers {
		s.Flowers[k] = v
	}
	for k, v := range state.writeoffs {
		s.Writeoffs[k] = v
	}
	for k, v := range state.notes {
		s.Notes[k] = v
	}
	for k, v := range state.orders {
		s.Orders[k] = cloneOrder(v)
	}
	for k, v := range state.orderItems {
		s.OrderItems[k] = v
	}
	for k, v := range state.users {
		s.Users[k] = v
	}
	for k, v := range state.sequences {
		s.Sequences[k] = v
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Flowers {
		state.flowers[k] = v
	}
	for k, v := range s.Writeoffs {
		state.writeoffs[k] = v
	}
	for k, v := range s.Notes {
		state.notes[k] = v
	}
	for k, v := range s.Orders {
		state.orders[k] = cloneOrder(v)
	}
	for k, v := range s.OrderItems {
		state.orderItems[k] = v
	}
	for k, v := range s.Users {
		state.users[k] = v
	}
	for k, v := range s.Sequences {
		state.sequences[k] = v
	}
	migrateSequences(&state)
	return state
}

// migrateSequences repairs counters for snapshots written before sequences
// were persisted: each counter is bumped past the highest id in its bucket.
func migrateSequences(state *memoryState) {
	bump := func(bucket string, max int) {
		if state.sequences[bucket] < max {
			state.sequences[bucket] = max
		}
	}
	for id := range state.flowers {
		bump(BucketWarehouse, id)
	}
	for id := range state.writeoffs {
		bump(BucketWriteoffs, id)
	}
	for id := range state.notes {
		bump(BucketNotes, id)
	}
	for id := range state.orders {
		bump(BucketOrders, id)
	}
	for id := range state.orderItems {
		bump(BucketOrderItems, id)
	}
	for id := range state.users {
		bump(BucketUsers, id)
	}
}

// Store provides an in-memory transactional store for the shop domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *domain.RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RunInTransaction executes fn within a transactional copy of the store
// state: the copy is committed only when fn succeeds and no blocking rule
// violation is present, so composite writes are all-or-nothing.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newTransactionView(&snapshot))
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []domain.Change
	now     time.Time
}

func (tx *transaction) nextID(bucket string) int {
	tx.state.sequences[bucket]++
	return tx.state.sequences[bucket]
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() domain.TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) FindFlowerStock(id int) (domain.FlowerStock, bool) {
	f, ok := tx.state.flowers[id]
	return f, ok
}

func (tx *transaction) FindFlowerStockByName(name string) (domain.FlowerStock, bool) {
	return findFlowerByName(&tx.state, name)
}

func (tx *transaction) FindOrder(id int) (domain.Order, bool) {
	o, ok := tx.state.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return cloneOrder(o), true
}

func (tx *transaction) FindNote(id int) (domain.Note, bool) {
	n, ok := tx.state.notes[id]
	return n, ok
}

// AddFlowers upserts stock by flower name.
func (tx *transaction) AddFlowers(name string, amount int) (domain.FlowerStock, error) {
	if amount <= 0 {
		return domain.FlowerStock{}, errors.New("flower amount must be positive")
	}
	if existing, ok := findFlowerByName(&tx.state, name); ok {
		before := existing
		existing.Amount += amount
		existing.UpdatedAt = tx.now
		tx.state.flowers[existing.ID] = existing
		tx.recordChange(domain.Change{Entity: domain.EntityFlowerStock, Action: domain.ActionUpdate, Before: before, After: existing})
		return existing, nil
	}
	created := domain.FlowerStock{
		ID:        tx.nextID(BucketWarehouse),
		Flower:    name,
		Amount:    amount,
		UpdatedAt: tx.now,
	}
	tx.state.flowers[created.ID] = created
	tx.recordChange(domain.Change{Entity: domain.EntityFlowerStock, Action: domain.ActionCreate, After: created})
	return created, nil
}

// UpdateFlowerStock mutates a stock record and refreshes its timestamp. The
// store deliberately does not constrain the amount here; the API layer keeps
// direct edits non-negative.
func (tx *transaction) UpdateFlowerStock(id int, mutator func(*domain.FlowerStock) error) (domain.FlowerStock, error) {
	current, ok := tx.state.flowers[id]
	if !ok {
		return domain.FlowerStock{}, domain.NotFoundError{Entity: domain.EntityFlowerStock, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.FlowerStock{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.flowers[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityFlowerStock, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// AddWriteoff records the disposal and applies the clamp-at-zero decrement
// when a stock record matches the name. An unmatched name still commits the
// write-off; the stock-shortfall rule reports it as a warning.
func (tx *transaction) AddWriteoff(name string, amount int) (domain.Writeoff, error) {
	if amount <= 0 {
		return domain.Writeoff{}, errors.New("writeoff amount must be positive")
	}
	created := domain.Writeoff{
		ID:         tx.nextID(BucketWriteoffs),
		Flower:     name,
		Amount:     amount,
		RecordedAt: tx.now,
	}
	tx.state.writeoffs[created.ID] = created
	tx.recordChange(domain.Change{Entity: domain.EntityWriteoff, Action: domain.ActionCreate, After: created})
	tx.consumeStock(name, amount)
	return created, nil
}

// consumeStock decrements the named stock clamped at zero. The update change
// it records lets rules compare requested against available amounts.
func (tx *transaction) consumeStock(name string, amount int) {
	stock, ok := findFlowerByName(&tx.state, name)
	if !ok {
		return
	}
	before := stock
	stock.Amount -= amount
	if stock.Amount < 0 {
		stock.Amount = 0
	}
	stock.UpdatedAt = tx.now
	tx.state.flowers[stock.ID] = stock
	tx.recordChange(domain.Change{Entity: domain.EntityFlowerStock, Action: domain.ActionUpdate, Before: before, After: stock})
}

// restoreStock returns a removed order item's amount to the named stock.
func (tx *transaction) restoreStock(name string, amount int) {
	stock, ok := findFlowerByName(&tx.state, name)
	if !ok {
		return
	}
	before := stock
	stock.Amount += amount
	stock.UpdatedAt = tx.now
	tx.state.flowers[stock.ID] = stock
	tx.recordChange(domain.Change{Entity: domain.EntityFlowerStock, Action: domain.ActionUpdate, Before: before, After: stock})
}

func (tx *transaction) CreateNote(n domain.Note) (domain.Note, error) {
	n.ID = tx.nextID(BucketNotes)
	n.UpdatedAt = tx.now
	tx.state.notes[n.ID] = n
	tx.recordChange(domain.Change{Entity: domain.EntityNote, Action: domain.ActionCreate, After: n})
	return n, nil
}

func (tx *transaction) UpdateNote(id int, mutator func(*domain.Note) error) (domain.Note, error) {
	current, ok := tx.state.notes[id]
	if !ok {
		return domain.Note{}, domain.NotFoundError{Entity: domain.EntityNote, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Note{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.notes[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityNote, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func (tx *transaction) DeleteNote(id int) error {
	current, ok := tx.state.notes[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityNote, ID: id}
	}
	delete(tx.state.notes, id)
	tx.recordChange(domain.Change{Entity: domain.EntityNote, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateOrder stores the order with its items and decrements stock per item.
func (tx *transaction) CreateOrder(order domain.Order, items []domain.OrderItem) (domain.Order, error) {
	if order.Status == "" {
		order.Status = domain.StatusNew
	}
	if !order.Status.Valid() {
		return domain.Order{}, fmt.Errorf("invalid order status %q", order.Status)
	}
	order.ID = tx.nextID(BucketOrders)
	tx.state.orders[order.ID] = cloneOrder(order)
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: cloneOrder(order)})
	if err := tx.createItems(order.ID, items); err != nil {
		return domain.Order{}, err
	}
	return cloneOrder(order), nil
}

func (tx *transaction) createItems(orderID int, items []domain.OrderItem) error {
	for _, item := range items {
		if item.Amount <= 0 {
			return fmt.Errorf("order item amount for %q must be positive", item.Flower)
		}
		item.ID = tx.nextID(BucketOrderItems)
		item.OrderID = orderID
		tx.state.orderItems[item.ID] = item
		tx.recordChange(domain.Change{Entity: domain.EntityOrderItem, Action: domain.ActionCreate, After: item})
		tx.consumeStock(item.Flower, item.Amount)
	}
	return nil
}

func (tx *transaction) UpdateOrder(id int, mutator func(*domain.Order) error) (domain.Order, error) {
	current, ok := tx.state.orders[id]
	if !ok {
		return domain.Order{}, domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
	}
	before := cloneOrder(current)
	working := cloneOrder(current)
	if err := mutator(&working); err != nil {
		return domain.Order{}, err
	}
	if !working.Status.Valid() {
		return domain.Order{}, fmt.Errorf("invalid order status %q", working.Status)
	}
	working.ID = id
	tx.state.orders[id] = cloneOrder(working)
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: cloneOrder(working)})
	return cloneOrder(working), nil
}

// ReplaceOrderItems swaps an order's item set wholesale. Removed items give
// their amounts back to stock before the new set is applied, so an edit
// rebalances inventory instead of double-charging it.
func (tx *transaction) ReplaceOrderItems(orderID int, items []domain.OrderItem) ([]domain.OrderItem, error) {
	if _, ok := tx.state.orders[orderID]; !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityOrder, ID: orderID}
	}
	for _, existing := range itemsForOrder(&tx.state, orderID) {
		tx.restoreStock(existing.Flower, existing.Amount)
		delete(tx.state.orderItems, existing.ID)
		tx.recordChange(domain.Change{Entity: domain.EntityOrderItem, Action: domain.ActionDelete, Before: existing})
	}
	if err := tx.createItems(orderID, items); err != nil {
		return nil, err
	}
	return itemsForOrder(&tx.state, orderID), nil
}

func (tx *transaction) CreateUser(u domain.User) (domain.User, error) {
	if _, ok := findUserByUsername(&tx.state, u.Username); ok {
		return domain.User{}, fmt.Errorf("username %q already taken", u.Username)
	}
	u.ID = tx.nextID(BucketUsers)
	tx.state.users[u.ID] = u
	tx.recordChange(domain.Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: u})
	return u, nil
}

func findFlowerByName(state *memoryState, name string) (domain.FlowerStock, bool) {
	for _, f := range state.flowers {
		if f.Flower == name {
			return f, true
		}
	}
	return domain.FlowerStock{}, false
}

func findUserByUsername(state *memoryState, username string) (domain.User, bool) {
	for _, u := range state.users {
		if u.Username == username {
			return u, true
		}
	}
	return domain.User{}, false
}

func itemsForOrder(state *memoryState, orderID int) []domain.OrderItem {
	var out []domain.OrderItem
	for _, item := range state.orderItems {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) domain.TransactionView {
	return transactionView{state: state}
}

// ListFlowers returns all stock records ascending by id.
func (v transactionView) ListFlowers() []domain.FlowerStock {
	out := make([]domain.FlowerStock, 0, len(v.state.flowers))
	for _, f := range v.state.flowers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListWriteoffs returns write-offs newest first.
func (v transactionView) ListWriteoffs() []domain.Writeoff {
	out := make([]domain.Writeoff, 0, len(v.state.writeoffs))
	for _, w := range v.state.writeoffs {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ListNotes returns notes newest first.
func (v transactionView) ListNotes() []domain.Note {
	out := make([]domain.Note, 0, len(v.state.notes))
	for _, n := range v.state.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ListOrders returns orders by scheduled delivery time, newest first.
func (v transactionView) ListOrders() []domain.Order {
	out := make([]domain.Order, 0, len(v.state.orders))
	for _, o := range v.state.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.After(out[j].ScheduledAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (v transactionView) ListOrderItems(orderID int) []domain.OrderItem {
	return itemsForOrder(v.state, orderID)
}

func (v transactionView) FindFlowerStock(id int) (domain.FlowerStock, bool) {
	f, ok := v.state.flowers[id]
	return f, ok
}

func (v transactionView) FindFlowerStockByName(name string) (domain.FlowerStock, bool) {
	return findFlowerByName(v.state, name)
}

func (v transactionView) FindWriteoff(id int) (domain.Writeoff, bool) {
	w, ok := v.state.writeoffs[id]
	return w, ok
}

func (v transactionView) FindNote(id int) (domain.Note, bool) {
	n, ok := v.state.notes[id]
	return n, ok
}

func (v transactionView) FindOrder(id int) (domain.Order, bool) {
	o, ok := v.state.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return cloneOrder(o), true
}

func (v transactionView) FindUser(id int) (domain.User, bool) {
	u, ok := v.state.users[id]
	return u, ok
}

func (v transactionView) FindUserByUsername(username string) (domain.User, bool) {
	return findUserByUsername(v.state, username)
}
