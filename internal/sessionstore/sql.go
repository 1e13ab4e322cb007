package sessionstore

import (
	"context"
	"time"
)

// SQLBackend is the subset of store.Repository used for session values.
type SQLBackend interface {
	GetSessionValue(ctx context.Context, namespace, key string) (string, bool, error)
	PutSessionValue(ctx context.Context, namespace, key, value string) error
	DeleteSessionValues(ctx context.Context, namespace string, keys ...string) error
	PurgeSessionValues(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQL persists session values in the service database.
type SQL struct {
	repo SQLBackend
}

// NewSQL creates a Store backed by the session_values table.
func NewSQL(repo SQLBackend) *SQL {
	return &SQL{repo: repo}
}

func (s *SQL) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	return s.repo.GetSessionValue(ctx, namespace, key)
}

func (s *SQL) Set(ctx context.Context, namespace, key, value string) error {
	return s.repo.PutSessionValue(ctx, namespace, key, value)
}

func (s *SQL) Delete(ctx context.Context, namespace string, keys ...string) error {
	return s.repo.DeleteSessionValues(ctx, namespace, keys...)
}

// Purge removes values not written for olderThan.
func (s *SQL) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.repo.PurgeSessionValues(ctx, olderThan)
}
