// Package mysql provides a MySQL-backed persistent store for deployments that
// already run MySQL. It mirrors the Postgres store: the in-memory store
// handles transactions and the full state is snapshotted per bucket.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"floracore/internal/infra/persistence/memory"
	"floracore/pkg/domain"

	_ "github.com/go-sql-driver/mysql" // register the mysql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultDSN = "floracore@tcp(localhost:3306)/floracore?parseTime=true"

var mysqlBuckets = []string{
	memory.BucketWarehouse,
	memory.BucketWriteoffs,
	memory.BucketNotes,
	memory.BucketOrders,
	memory.BucketOrderItems,
	memory.BucketUsers,
	"sequences",
}

// Store persists state to MySQL while reusing the in-memory implementation
// for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a MySQL-backed store using the provided DSN (falls back to
// defaultDSN), ensures the snapshot table exists, and hydrates the in-memory
// store from any existing snapshot.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket VARCHAR(64) PRIMARY KEY,
		payload JSON NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	snapshot, loaded, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	if loaded {
		mem.ImportState(snapshot)
	}
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction applies fn within a transaction, then snapshots to MySQL
// if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	loaded := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, false, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		if err := decodeBucket(&snapshot, bucket, payload); err != nil {
			return memory.Snapshot{}, false, err
		}
		loaded = true
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, loaded, nil
}

func decodeBucket(snapshot *memory.Snapshot, bucket string, payload []byte) error {
	var target any
	switch bucket {
	case memory.BucketWarehouse:
		target = &snapshot.Flowers
	case memory.BucketWriteoffs:
		target = &snapshot.Writeoffs
	case memory.BucketNotes:
		target = &snapshot.Notes
	case memory.BucketOrders:
		target = &snapshot.Orders
	case memory.BucketOrderItems:
		target = &snapshot.OrderItems
	case memory.BucketUsers:
		target = &snapshot.Users
	case "sequences":
		target = &snapshot.Sequences
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

func encodeBucket(snapshot memory.Snapshot, bucket string) ([]byte, error) {
	switch bucket {
	case memory.BucketWarehouse:
		return json.Marshal(snapshot.Flowers)
	case memory.BucketWriteoffs:
		return json.Marshal(snapshot.Writeoffs)
	case memory.BucketNotes:
		return json.Marshal(snapshot.Notes)
	case memory.BucketOrders:
		return json.Marshal(snapshot.Orders)
	case memory.BucketOrderItems:
		return json.Marshal(snapshot.OrderItems)
	case memory.BucketUsers:
		return json.Marshal(snapshot.Users)
	case "sequences":
		return json.Marshal(snapshot.Sequences)
	}
	return nil, fmt.Errorf("unknown bucket %s", bucket)
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range mysqlBuckets {
		data, err := encodeBucket(snapshot, bucket)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON DUPLICATE KEY UPDATE payload=VALUES(payload)`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
