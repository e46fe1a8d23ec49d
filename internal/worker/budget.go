package worker

import (
	"fmt"
	"sync/atomic"

	"asset-forge/internal/domain"
)

// Budget tracks the memory a single job has claimed. Execution steps charge
// it with the size of what they hold (raw text, aggregates, rendered bytes);
// crossing the limit fails the job with ResourceExhausted and makes the pool
// recycle the slot. A nil Budget is unlimited.
type Budget struct {
	limit    int64
	used     atomic.Int64
	exceeded atomic.Bool
}

// NewBudget creates a Budget. limit <= 0 means unlimited.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// Charge adds n bytes on behalf of step.
func (b *Budget) Charge(step string, n int) error {
	if b == nil || n <= 0 {
		return nil
	}
	used := b.used.Add(int64(n))
	if b.limit > 0 && used > b.limit {
		b.exceeded.Store(true)
		return domain.NewJobError(domain.ClassResourceExhausted, step,
			fmt.Errorf("memory ceiling exceeded: %d of %d bytes", used, b.limit))
	}
	return nil
}

// Used returns the bytes charged so far.
func (b *Budget) Used() int64 {
	if b == nil {
		return 0
	}
	return b.used.Load()
}

// Exceeded reports whether any charge crossed the limit.
func (b *Budget) Exceeded() bool {
	return b != nil && b.exceeded.Load()
}
