package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ecosoraculo/oraculo/internal/domain"
	"github.com/ecosoraculo/oraculo/internal/shared"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements Repository on database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db        *sql.DB
	dialect   dialect
	sessionMu sync.Mutex // Serializes session value writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{db: db, dialect: dialectSQLite}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS visitors (
		id TEXT PRIMARY KEY,
		nickname TEXT NOT NULL,
		last_seen_at BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		external_reference TEXT NOT NULL UNIQUE,
		preference_id TEXT NOT NULL DEFAULT '',
		service_id TEXT NOT NULL,
		visitor_id TEXT NOT NULL DEFAULT '',
		amount DOUBLE PRECISION NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		payment_id TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		action TEXT NOT NULL DEFAULT '',
		resource_id TEXT NOT NULL DEFAULT '',
		external_reference TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		received_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		service_id TEXT NOT NULL DEFAULT '',
		visitor_id TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session_values (
		namespace TEXT NOT NULL,
		entry_key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (namespace, entry_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_values_updated ON session_values(updated_at)`,
}

func (s *SQLStore) initSchema() error {
	if s.dialect == dialectSQLite {
		if _, err := s.db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
			return fmt.Errorf("set busy timeout: %w", err)
		}
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for drivers that use $n.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetVisitor retrieves a visitor by id.
func (s *SQLStore) GetVisitor(ctx context.Context, id string) (*domain.Visitor, error) {
	query := s.rebind(`
		SELECT id, nickname, last_seen_at, created_at, updated_at
		FROM visitors WHERE id = ?`)

	var v domain.Visitor
	var lastSeen, createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.Nickname, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan visitor row: %w", err)
	}

	v.LastSeenAt = time.Unix(lastSeen, 0)
	v.CreatedAt = time.Unix(createdAt, 0)
	v.UpdatedAt = time.Unix(updatedAt, 0)
	return &v, nil
}

// UpsertVisitor creates or updates a visitor record.
func (s *SQLStore) UpsertVisitor(ctx context.Context, v *domain.Visitor) error {
	query := s.rebind(`
	INSERT INTO visitors (id, nickname, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		nickname = excluded.nickname,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`)

	_, err := s.db.ExecContext(ctx, query,
		v.ID, v.Nickname, v.LastSeenAt.Unix(), v.CreatedAt.Unix(), v.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert visitor: %w", err)
	}
	return nil
}

// CreateOrder stores a newly created checkout order.
func (s *SQLStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	query := s.rebind(`
	INSERT INTO orders (id, external_reference, preference_id, service_id, visitor_id,
		amount, email, status, payment_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		o.ID, o.ExternalReference, o.PreferenceID, o.ServiceID, o.VisitorID,
		o.Amount, o.Email, o.Status, o.PaymentID, o.CreatedAt.Unix(), o.UpdatedAt.Unix())
	if shared.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetOrderByReference retrieves an order by its external reference.
func (s *SQLStore) GetOrderByReference(ctx context.Context, ref string) (*domain.Order, error) {
	query := s.rebind(`
		SELECT id, external_reference, preference_id, service_id, visitor_id,
		       amount, email, status, payment_id, created_at, updated_at
		FROM orders WHERE external_reference = ?`)

	var o domain.Order
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, ref).Scan(
		&o.ID, &o.ExternalReference, &o.PreferenceID, &o.ServiceID, &o.VisitorID,
		&o.Amount, &o.Email, &o.Status, &o.PaymentID, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan order row: %w", err)
	}

	o.CreatedAt = time.Unix(createdAt, 0)
	o.UpdatedAt = time.Unix(updatedAt, 0)
	return &o, nil
}

// UpdateOrderStatus sets the status of an order identified by external reference.
func (s *SQLStore) UpdateOrderStatus(ctx context.Context, ref, status, paymentID string) error {
	query := `UPDATE orders SET status = ?, updated_at = ?`
	args := []interface{}{status, time.Now().Unix()}
	if paymentID != "" {
		query += `, payment_id = ?`
		args = append(args, paymentID)
	}
	query += ` WHERE external_reference = ?`
	args = append(args, ref)

	result, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateOrderStatus affected 0 rows", "external_reference", ref)
		return ErrNotFound
	}
	return nil
}

// ExpireStaleOrders marks orders never resolved within olderThan as expired.
func (s *SQLStore) ExpireStaleOrders(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now()
	threshold := now.Add(-olderThan).Unix()
	query := s.rebind(`UPDATE orders SET status = ?, updated_at = ? WHERE status = ? AND created_at < ?`)
	result, err := s.db.ExecContext(ctx, query, domain.OrderExpired, now.Unix(), domain.OrderCreated, threshold)
	if err != nil {
		return 0, fmt.Errorf("expire stale orders: %w", err)
	}
	return result.RowsAffected()
}

// RecordNotification stores a provider webhook delivery.
func (s *SQLStore) RecordNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	query := s.rebind(`
	INSERT INTO notifications (id, type, action, resource_id, external_reference, status, payload, received_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.Type, n.Action, n.ResourceID, n.ExternalReference, n.Status, n.Payload, n.ReceivedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// SaveLead stores contact data left at checkout.
func (s *SQLStore) SaveLead(ctx context.Context, l *domain.Lead) error {
	query := s.rebind(`
	INSERT INTO leads (id, email, first_name, last_name, service_id, visitor_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), l.Email, l.FirstName, l.LastName, l.ServiceID, l.VisitorID, l.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// GetSessionValue reads one session-store entry.
func (s *SQLStore) GetSessionValue(ctx context.Context, namespace, key string) (string, bool, error) {
	query := s.rebind(`SELECT value FROM session_values WHERE namespace = ? AND entry_key = ?`)

	var value string
	err := s.db.QueryRowContext(ctx, query, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("scan session value: %w", err)
	}
	return value, true, nil
}

// PutSessionValue writes one session-store entry.
func (s *SQLStore) PutSessionValue(ctx context.Context, namespace, key, value string) error {
	query := s.rebind(`
	INSERT INTO session_values (namespace, entry_key, value, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(namespace, entry_key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`)

	return s.withRetry(ctx, "put session value", func() error {
		s.sessionMu.Lock()
		defer s.sessionMu.Unlock()
		_, err := s.db.ExecContext(ctx, query, namespace, key, value, time.Now().Unix())
		return err
	})
}

// DeleteSessionValues removes keys from a namespace, or the whole namespace when no keys are given.
func (s *SQLStore) DeleteSessionValues(ctx context.Context, namespace string, keys ...string) error {
	query := `DELETE FROM session_values WHERE namespace = ?`
	args := []interface{}{namespace}
	if len(keys) > 0 {
		query += ` AND entry_key IN (?` + strings.Repeat(", ?", len(keys)-1) + `)`
		for _, k := range keys {
			args = append(args, k)
		}
	}
	query = s.rebind(query)

	return s.withRetry(ctx, "delete session values", func() error {
		s.sessionMu.Lock()
		defer s.sessionMu.Unlock()
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// PurgeSessionValues removes entries not written for olderThan.
func (s *SQLStore) PurgeSessionValues(ctx context.Context, olderThan time.Duration) (int64, error) {
	threshold := time.Now().Add(-olderThan).Unix()
	query := s.rebind(`DELETE FROM session_values WHERE updated_at < ?`)

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("purge session values: %w", err)
	}
	return result.RowsAffected()
}

// withRetry runs op with exponential backoff on SQLITE_BUSY errors.
func (s *SQLStore) withRetry(ctx context.Context, name string, op func() error) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = op()
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // exponential backoff: 50ms, 100ms, 200ms
		slog.Debug("Database locked, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}
