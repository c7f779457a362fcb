package aspect

import (
	"sync/atomic"

	"github.com/weavego/weave/api/types"
)

// ConcurrencyLimiter restricts the number of concurrently executing calls
// on the operations it is bound to, using atomic compare-and-swap so no
// lock is taken on the call path. When the limit is exceeded the call is
// rejected with types.ErrConcurrencyLimitReached without reaching the
// target implementation.
type ConcurrencyLimiter struct {
	Max          int64
	currentCount int64
}

// NewConcurrencyLimiter creates a limiter for at most max concurrent calls.
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{Max: int64(max)}
}

// Aspect builds the limiter aspect for the operations matched by selector.
// Order 10 places it among the first advice to run.
func (a *ConcurrencyLimiter) Aspect(selector string) *types.Aspect {
	return types.NewAspect("concurrencyLimiter").
		Around(selector, 10, a.around)
}

// Current returns the number of calls currently inside the limiter.
func (a *ConcurrencyLimiter) Current() int64 {
	return atomic.LoadInt64(&a.currentCount)
}

func (a *ConcurrencyLimiter) around(inv *types.Invocation) (interface{}, error) {
	// 使用原子操作确保检查和增加操作的原子性
	for {
		current := atomic.LoadInt64(&a.currentCount)
		if current >= a.Max {
			return nil, types.ErrConcurrencyLimitReached
		}
		if atomic.CompareAndSwapInt64(&a.currentCount, current, current+1) {
			break
		}
	}
	defer atomic.AddInt64(&a.currentCount, -1)
	return inv.Proceed()
}
