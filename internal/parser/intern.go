package parser

import "sync"

// MaxArnPoolSize bounds the number of distinct execution ARNs kept.
// Past the limit new ARNs are returned without being pooled.
const MaxArnPoolSize = 100000

// ArnIntern shares the backing memory of repeated execution ARNs.
// A single execution logs many lines, so the same ARN string is seen once per
// state transition for the lifetime of the process.
type ArnIntern struct {
	mu   sync.RWMutex
	pool map[string]string
	max  int
}

// NewArnIntern creates an empty pool holding at most max entries.
// A max of zero or less uses MaxArnPoolSize.
func NewArnIntern(max int) *ArnIntern {
	if max <= 0 {
		max = MaxArnPoolSize
	}
	return &ArnIntern{
		pool: make(map[string]string, 256),
		max:  max,
	}
}

// Intern returns the pooled copy of arn, adding it if there is room.
func (ai *ArnIntern) Intern(arn string) string {
	ai.mu.RLock()
	pooled, ok := ai.pool[arn]
	full := len(ai.pool) >= ai.max
	ai.mu.RUnlock()
	if ok {
		return pooled
	}
	if full {
		return arn
	}

	ai.mu.Lock()
	defer ai.mu.Unlock()
	if pooled, ok := ai.pool[arn]; ok {
		return pooled
	}
	if len(ai.pool) >= ai.max {
		return arn
	}
	ai.pool[arn] = arn
	return arn
}

// Len returns the number of pooled ARNs.
func (ai *ArnIntern) Len() int {
	ai.mu.RLock()
	defer ai.mu.RUnlock()
	return len(ai.pool)
}
