// Package cache memoizes pure computations under content-addressed keys.
package cache

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Store holds encoded results. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Key builds "<kind>:<fingerprint>:<params hash>". params must render deterministically with %+v.
func Key(kind string, fingerprint uint64, params any) string {
	return fmt.Sprintf("%s:%016x:%016x", kind, fingerprint, xxhash.Sum64String(fmt.Sprintf("%+v", params)))
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }
