// Package cache guards on-disk artifacts that several processes may try to
// produce at the same time.
package cache

import (
	"context"

	"updater/pkg/fspath"
)

// Ensure runs fn to produce target unless target already exists. Concurrent
// callers, in this process or others, are serialized through Lock, and fn runs
// at most once for a target that it successfully creates.
func Ensure(ctx context.Context, target fspath.Path, fn func() error) error {
	if target.Exists() {
		return nil
	}

	unlock, err := Lock(ctx, target)
	if err != nil {
		return err
	}
	defer unlock()

	// Another holder may have produced it while we waited.
	if target.Exists() {
		return nil
	}

	return fn()
}
