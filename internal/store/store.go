// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ecosoraculo/oraculo/internal/domain"
)

// ErrNotFound is returned when an update targets a missing row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing key.
var ErrDuplicate = errors.New("duplicate")

// Repository defines the interface for persisting visitors, orders and session state.
type Repository interface {
	// GetVisitor retrieves a visitor by id. Returns nil, nil when missing.
	GetVisitor(ctx context.Context, id string) (*domain.Visitor, error)

	// UpsertVisitor creates or updates a visitor record.
	UpsertVisitor(ctx context.Context, v *domain.Visitor) error

	// CreateOrder stores a newly created checkout order.
	CreateOrder(ctx context.Context, o *domain.Order) error

	// GetOrderByReference retrieves an order by its external reference. Returns nil, nil when missing.
	GetOrderByReference(ctx context.Context, ref string) (*domain.Order, error)

	// UpdateOrderStatus sets the status (and payment id when non-empty) of an order.
	UpdateOrderStatus(ctx context.Context, ref, status, paymentID string) error

	// ExpireStaleOrders marks orders still in "created" after olderThan as expired.
	ExpireStaleOrders(ctx context.Context, olderThan time.Duration) (int64, error)

	// RecordNotification stores a provider webhook delivery.
	RecordNotification(ctx context.Context, n *domain.Notification) error

	// SaveLead stores contact data left at checkout.
	SaveLead(ctx context.Context, l *domain.Lead) error

	// GetSessionValue reads one session-store entry.
	GetSessionValue(ctx context.Context, namespace, key string) (string, bool, error)

	// PutSessionValue writes one session-store entry.
	PutSessionValue(ctx context.Context, namespace, key, value string) error

	// DeleteSessionValues removes entries from a namespace.
	DeleteSessionValues(ctx context.Context, namespace string, keys ...string) error

	// PurgeSessionValues removes entries not written for olderThan.
	PurgeSessionValues(ctx context.Context, olderThan time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
