// 包 snapshot：启动时一次性读取全部车位并转换为渲染要素
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parking-live/internal/geometry"
	"parking-live/internal/logger"
	"parking-live/internal/metrics"
	"parking-live/internal/parking"
	"parking-live/internal/reconcile"
)

// Source：批量读取全部记录的后端，生产实现为 store.Store
type Source interface {
	FetchAll(ctx context.Context) ([]parking.Record, error)
}

// ErrTransport：快照拉取失败的哨兵错误
var ErrTransport = errors.New("snapshot transport error")

// TransportError：包装底层读取失败
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("snapshot fetch: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

type Loader struct {
	src Source
}

func NewLoader(src Source) *Loader { return &Loader{src: src} }

// 文档注释：加载快照
// 约束：只读一次，不重试；失败返回 *TransportError 且集合为 nil，由调用方决定是否以空集合继续。
// 上下文取消同样归类为 TransportError，调用方可用 errors.Is(err, context.Canceled) 区分。
func (l *Loader) Load(ctx context.Context) (*reconcile.Collection, error) {
	t0 := time.Now()
	recs, err := l.src.FetchAll(ctx)
	metrics.SnapshotDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		metrics.SnapshotLoadsTotal.WithLabelValues("error").Inc()
		return nil, &TransportError{Err: err}
	}
	fs := make([]parking.Feature, 0, len(recs))
	for _, r := range recs {
		fs = append(fs, Feature(r))
	}
	c := reconcile.New()
	c.Seed(fs)
	metrics.SnapshotLoadsTotal.WithLabelValues("ok").Inc()
	logger.L().Info("snapshot_loaded", "records", len(recs), "features", c.Len())
	return c, nil
}

// 文档注释：记录到要素的转换，附带数据质量告警
// 约束：奇数坐标与未知状态只记录日志与计数，不拒绝记录。
func Feature(r parking.Record) parking.Feature {
	if geometry.Dangling(r.Coordinates) {
		metrics.OddCoordinatesTotal.Inc()
		logger.L().Warn("coords_odd_length", "id", r.ID, "len", len(r.Coordinates))
	}
	if _, err := parking.ParseStatus(r.Status); err != nil {
		metrics.UnknownStatusTotal.Inc()
		logger.L().Warn("status_unknown", "id", r.ID, "status", r.Status)
	}
	return r.ToFeature()
}
