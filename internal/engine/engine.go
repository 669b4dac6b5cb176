// 包 engine：状态同步引擎；订阅变更、加载快照、逐条调和并驱动渲染端
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"parking-live/internal/feed"
	"parking-live/internal/logger"
	"parking-live/internal/metrics"
	"parking-live/internal/parking"
	"parking-live/internal/reconcile"
	"parking-live/internal/sink"
	"parking-live/internal/snapshot"
)

// Loader：快照加载，生产实现为 snapshot.Loader
type Loader interface {
	Load(ctx context.Context) (*reconcile.Collection, error)
}

var (
	ErrFeedClosed = errors.New("change feed closed")
	ErrRunning    = errors.New("engine already running")
)

// 文档注释：同步引擎
// 背景：集合只在 Run 所在协程内修改，快照播种与每条事件按投递顺序串行执行，因此集合本身不加锁。
// 约束：
//   - 先订阅再加载快照，快照期间到达的事件在订阅通道内排队，播种后按序应用；
//   - 快照失败时以空集合继续并照常下发一次（地图显示为空），错误可通过 SnapshotErr 读取；
//   - 渲染端在快照完成后收到第一帧（无论是否为空），之后每次成功 upsert 收到一帧；
//   - DELETE 事件不改变集合；最后投递的更新总是生效，不比较版本。
type Engine struct {
	loader Loader
	feed   feed.Subscriber
	sink   sink.Sink

	running atomic.Bool
	ready   atomic.Bool
	counts  atomic.Value // reconcile.Counts

	mu          sync.Mutex
	cancel      context.CancelFunc
	closed      bool
	snapshotErr error
}

func New(loader Loader, sub feed.Subscriber, s sink.Sink) *Engine {
	e := &Engine{loader: loader, feed: sub, sink: s}
	e.counts.Store(reconcile.Counts{})
	return e
}

// 文档注释：运行引擎直到 ctx 取消、Close 被调用或订阅结束
// 返回：正常停止返回 nil；订阅建立失败返回包装后的错误；订阅通道意外关闭返回 ErrFeedClosed。
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	l := logger.L()
	sub, err := e.feed.Subscribe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			l.Info("engine_stopped_during_subscribe")
			return nil
		}
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			l.Warn("feed_unsubscribe_error", "err", err)
		}
	}()

	coll, err := e.loader.Load(ctx)
	if ctx.Err() != nil {
		// 拆除与快照竞争：完成回调不再修改集合
		l.Info("engine_stopped_during_snapshot")
		return nil
	}
	if err != nil {
		l.Error("snapshot_load_error", "err", err)
		e.setSnapshotErr(err)
		coll = reconcile.New()
	}
	e.present(ctx, coll)
	e.ready.Store(true)
	l.Info("engine_seeded", "features", coll.Len())

	for {
		select {
		case <-ctx.Done():
			l.Info("engine_stopped")
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				l.Error("feed_closed")
				return ErrFeedClosed
			}
			if apply(coll, ev) {
				e.present(ctx, coll)
			}
		}
	}
}

// apply：把一条事件调和进集合；返回是否发生了 upsert
func apply(coll *reconcile.Collection, ev parking.ChangeEvent) bool {
	l := logger.L()
	metrics.EventsTotal.WithLabelValues(ev.Kind.Label()).Inc()
	switch ev.Kind {
	case parking.EventInsert, parking.EventUpdate:
		if ev.New == nil {
			metrics.EventsDroppedTotal.WithLabelValues("missing_new").Inc()
			return false
		}
		f := snapshot.Feature(*ev.New)
		if coll.Upsert(f) {
			metrics.UpsertsTotal.WithLabelValues("replace").Inc()
		} else {
			metrics.UpsertsTotal.WithLabelValues("insert").Inc()
		}
		l.Debug("feature_upserted", "id", f.ID, "status", f.Status, "kind", ev.Kind)
		return true
	case parking.EventDelete:
		var id int64
		if ev.Old != nil {
			id = ev.Old.ID
		}
		l.Debug("event_delete_ignored", "id", id)
		return false
	}
	metrics.EventsDroppedTotal.WithLabelValues("unknown_kind").Inc()
	return false
}

func (e *Engine) present(ctx context.Context, coll *reconcile.Collection) {
	c := coll.Counts()
	e.counts.Store(c)
	metrics.Features.WithLabelValues(string(parking.StatusFree)).Set(float64(c.Free))
	metrics.Features.WithLabelValues(string(parking.StatusOccupied)).Set(float64(c.Occupied))
	metrics.Features.WithLabelValues(string(parking.StatusUnknown)).Set(float64(c.Unknown))
	if e.sink == nil {
		return
	}
	if err := e.sink.Present(ctx, coll.FeatureCollection()); err != nil {
		logger.L().Error("render_present_error", "err", err)
	}
}

// Close：停止引擎；可重复调用，可在 Run 阻塞时调用
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.cancel != nil {
		e.cancel()
	}
}

// Ready：快照阶段已结束并下发过第一帧
func (e *Engine) Ready() bool { return e.ready.Load() }

// Counts：最近一次下发时的状态统计
func (e *Engine) Counts() reconcile.Counts { return e.counts.Load().(reconcile.Counts) }

// SnapshotErr：快照加载失败的原因；成功时为 nil
func (e *Engine) SnapshotErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotErr
}

func (e *Engine) setSnapshotErr(err error) {
	e.mu.Lock()
	e.snapshotErr = err
	e.mu.Unlock()
}
