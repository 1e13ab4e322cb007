package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Bag is a typed view over one namespace.
type Bag struct {
	store     Store
	namespace string
}

// NewBag binds a Store to a namespace.
func NewBag(s Store, namespace string) *Bag {
	return &Bag{store: s, namespace: namespace}
}

// Namespace returns the namespace the bag writes to.
func (b *Bag) Namespace() string {
	return b.namespace
}

func (b *Bag) String(ctx context.Context, key string) (string, bool, error) {
	return b.store.Get(ctx, b.namespace, key)
}

func (b *Bag) SetString(ctx context.Context, key, value string) error {
	return b.store.Set(ctx, b.namespace, key, value)
}

// Int reads an integer. A value that does not parse yields ErrCorrupt.
func (b *Bag) Int(ctx context.Context, key string) (int, bool, error) {
	raw, ok, err := b.store.Get(ctx, b.namespace, key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, ErrCorrupt)
	}
	return n, true, nil
}

func (b *Bag) SetInt(ctx context.Context, key string, n int) error {
	return b.store.Set(ctx, b.namespace, key, strconv.Itoa(n))
}

// Bool reads a flag stored as "true" or "false". Missing keys read as false.
func (b *Bag) Bool(ctx context.Context, key string) (bool, error) {
	raw, ok, err := b.store.Get(ctx, b.namespace, key)
	if err != nil || !ok {
		return false, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, ErrCorrupt)
	}
	return v, nil
}

func (b *Bag) SetBool(ctx context.Context, key string, v bool) error {
	return b.store.Set(ctx, b.namespace, key, strconv.FormatBool(v))
}

// JSON decodes a stored document into dst.
func (b *Bag) JSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := b.store.Get(ctx, b.namespace, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, fmt.Errorf("%s: %w", key, ErrCorrupt)
	}
	return true, nil
}

func (b *Bag) SetJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return b.store.Set(ctx, b.namespace, key, string(data))
}

// Clear removes keys from the namespace.
func (b *Bag) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.store.Delete(ctx, b.namespace, keys...)
}
