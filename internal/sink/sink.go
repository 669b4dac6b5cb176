// 包 sink：渲染端适配，接收整份要素集合（整体替换语义，从不下发增量）
package sink

import (
	"context"

	"parking-live/internal/logger"
	"parking-live/internal/metrics"

	"github.com/paulmach/orb/geojson"
)

// Sink：渲染端契约
// 约束：每次收到的都是完整集合，可能与上次相同或重叠；实现不得假设增量。
type Sink interface {
	Present(ctx context.Context, fc *geojson.FeatureCollection) error
}

// Named：可选接口，用于指标标签
type Named interface {
	Name() string
}

func nameOf(s Sink) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "sink"
}

// Multi：按顺序向各渲染端下发；单个失败只记录，不影响其余
type Multi struct {
	list []Sink
}

func NewMulti(list ...Sink) *Multi {
	return &Multi{list: list}
}

func (m *Multi) Name() string { return "multi" }

// Present：返回最后一个失败的错误，其余已记录日志
func (m *Multi) Present(ctx context.Context, fc *geojson.FeatureCollection) error {
	var last error
	for _, s := range m.list {
		if s == nil {
			continue
		}
		name := nameOf(s)
		if err := s.Present(ctx, fc); err != nil {
			metrics.PresentsTotal.WithLabelValues(name, "error").Inc()
			logger.L().Error("sink_present_error", "sink", name, "err", err)
			last = err
			continue
		}
		metrics.PresentsTotal.WithLabelValues(name, "ok").Inc()
	}
	return last
}
