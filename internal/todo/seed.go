package todo

import (
	"context"
	"fmt"
)

// Seed fills an empty ledger with sample items. It reports how many items it
// created; a ledger that already holds items is left untouched.
func Seed(ctx context.Context, l Ledger, n int) (int, error) {
	existing, err := l.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i := 1; i <= n; i++ {
		if _, err := l.Create(ctx, fmt.Sprintf("Todo Item %d", i), ""); err != nil {
			return i - 1, fmt.Errorf("seed item %d: %w", i, err)
		}
	}
	return n, nil
}
