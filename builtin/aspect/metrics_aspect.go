package aspect

import (
	"github.com/weavego/weave/api/types"
	"github.com/weavego/weave/api/types/metrics"
)

// Metrics 实现了统计被拦截调用指标的功能
type Metrics struct {
	metrics *metrics.CallMetrics
}

// NewMetrics creates a metrics collector, allocating counters when m is nil.
func NewMetrics(m *metrics.CallMetrics) *Metrics {
	if m == nil {
		m = metrics.NewCallMetrics()
	}
	return &Metrics{metrics: m}
}

// Aspect builds the metrics aspect for the operations matched by selector.
// Order 20 places it just inside the limiter.
func (a *Metrics) Aspect(selector string) *types.Aspect {
	return types.NewAspect("metrics").
		Around(selector, 20, a.around)
}

func (a *Metrics) around(inv *types.Invocation) (interface{}, error) {
	a.metrics.IncrementCurrent()
	a.metrics.IncrementTotal()
	defer a.metrics.DecrementCurrent()

	v, err := inv.Proceed()
	if err != nil {
		a.metrics.IncrementFailed()
	} else {
		a.metrics.IncrementSuccess()
	}
	return v, err
}

// GetMetrics 返回当前的指标
func (a *Metrics) GetMetrics() *metrics.CallMetrics {
	return a.metrics
}
