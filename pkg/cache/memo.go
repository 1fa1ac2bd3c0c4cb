package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Memo runs a computation once per key and serves later calls from the store.
// Concurrent calls for the same key share one computation.
type Memo struct {
	store Store
	group singleflight.Group
}

func NewMemo(store Store) *Memo {
	if store == nil {
		store = Nop{}
	}
	return &Memo{store: store}
}

// Do returns the cached value for key, or computes, stores and returns it.
// hit reports whether the value came from the store. Store failures never fail the call.
func Do[T any](ctx context.Context, m *Memo, key string, compute func() (T, error)) (value T, hit bool, err error) {
	if b, ok, gerr := m.store.Get(ctx, key); gerr == nil && ok {
		if derr := gob.NewDecoder(bytes.NewReader(b)).Decode(&value); derr == nil {
			return value, true, nil
		}
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		out, err := compute()
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(out); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", key, err)
		}
		_ = m.store.Set(ctx, key, buf.Bytes())
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}
