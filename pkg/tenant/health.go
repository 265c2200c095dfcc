package tenant

import (
	"context"
	"fmt"
	"time"
)

// DirectoryHealthStore is the subset of the store the directory
// healthcheck scans.
type DirectoryHealthStore interface {
	DuplicateSubdomains(ctx context.Context) ([]string, error)
	CountMissingNames(ctx context.Context) (int, error)
}

// slowScanThreshold flags directory scans that take suspiciously long,
// usually a missing index or an oversized tenants table.
const slowScanThreshold = 500 * time.Millisecond

// DirectoryHealthcheck returns a check that fails on duplicate
// subdomains, tenants without a display name, or slow directory queries.
func DirectoryHealthcheck(store DirectoryHealthStore) func(context.Context) error {
	return func(ctx context.Context) error {
		start := time.Now()

		dups, err := store.DuplicateSubdomains(ctx)
		if err != nil {
			return fmt.Errorf("tenant directory scan failed: %w", err)
		}
		if len(dups) > 0 {
			return fmt.Errorf("%d duplicate tenant subdomains detected", len(dups))
		}

		missing, err := store.CountMissingNames(ctx)
		if err != nil {
			return fmt.Errorf("tenant directory scan failed: %w", err)
		}
		if missing > 0 {
			return fmt.Errorf("%d tenants missing a display name", missing)
		}

		if elapsed := time.Since(start); elapsed > slowScanThreshold {
			return fmt.Errorf("tenant directory queries are slow: %s", elapsed)
		}
		return nil
	}
}
