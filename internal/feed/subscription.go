// 包 feed：变更订阅，将推送式通知转换为按序消费的 ChangeEvent 通道
package feed

import (
	"context"
	"sync"

	"parking-live/internal/logger"
	"parking-live/internal/metrics"
	"parking-live/internal/parking"
)

// Subscriber：建立长连接订阅
type Subscriber interface {
	Subscribe(ctx context.Context) (*Subscription, error)
}

// FetchFunc：按 id 回表读取一条记录，供只带 ref 的信封补齐 New
type FetchFunc func(ctx context.Context, id int64) (parking.Record, bool, error)

// Filter：只转发匹配 schema/table 的事件；空值不限
type Filter struct {
	Schema string
	Table  string
}

// 文档注释：订阅句柄
// 背景：底层传输在独立协程内收取载荷，解码后写入单一通道；消费者逐条取出即为单消费者、逐条执行的顺序。
// 约束：通道在订阅结束后关闭；Unsubscribe 可重复调用，释放底层连接并等待收取协程退出。
type Subscription struct {
	events chan parking.ChangeEvent
	cancel context.CancelFunc
	done   chan struct{}
	filter Filter
	driver string
	fetch  FetchFunc

	closeOnce sync.Once
	closeErr  error
	release   func() error
}

func newSubscription(ctx context.Context, driver string, buffer int, f Filter, release func() error) (*Subscription, context.Context) {
	if buffer <= 0 {
		buffer = 1
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Subscription{
		events:  make(chan parking.ChangeEvent, buffer),
		cancel:  cancel,
		done:    make(chan struct{}),
		filter:  f,
		driver:  driver,
		release: release,
	}, cctx
}

// Events：事件通道；订阅结束后被关闭
func (s *Subscription) Events() <-chan parking.ChangeEvent { return s.events }

// Done：收取协程退出时关闭
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Unsubscribe：取消订阅并释放底层连接
func (s *Subscription) Unsubscribe() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.release != nil {
			s.closeErr = s.release()
		}
		<-s.done
		logger.L().Info("feed_unsubscribed", "driver", s.driver)
	})
	return s.closeErr
}

// deliver：解码、过滤并投递一条载荷；返回 false 表示订阅已结束
func (s *Subscription) deliver(ctx context.Context, payload []byte) bool {
	ev, err := parking.DecodeEvent(payload)
	if err != nil {
		metrics.EventsDroppedTotal.WithLabelValues("malformed").Inc()
		logger.L().Warn("feed_payload_malformed", "driver", s.driver, "err", err)
		return true
	}
	if !ev.Matches(s.filter.Schema, s.filter.Table) {
		metrics.EventsDroppedTotal.WithLabelValues("filtered").Inc()
		logger.L().Debug("feed_event_filtered", "schema", ev.Schema, "table", ev.Table)
		return true
	}
	if ev.NeedsFetch() {
		if !s.resolve(ctx, &ev) {
			return ctx.Err() == nil
		}
	}
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// resolve：回表补齐 New；读取失败或记录已删除时丢弃该事件
func (s *Subscription) resolve(ctx context.Context, ev *parking.ChangeEvent) bool {
	l := logger.L()
	if s.fetch == nil {
		metrics.EventsDroppedTotal.WithLabelValues("unresolved").Inc()
		l.Warn("feed_ref_unresolved", "driver", s.driver, "id", ev.Ref.ID)
		return false
	}
	r, found, err := s.fetch(ctx, ev.Ref.ID)
	if err != nil {
		metrics.EventsDroppedTotal.WithLabelValues("fetch_error").Inc()
		l.Warn("feed_ref_fetch_error", "driver", s.driver, "id", ev.Ref.ID, "err", err)
		return false
	}
	if !found {
		metrics.EventsDroppedTotal.WithLabelValues("row_gone").Inc()
		l.Debug("feed_ref_row_gone", "id", ev.Ref.ID)
		return false
	}
	ev.New = &r
	return true
}

// finish：收取协程退出时调用
func (s *Subscription) finish() {
	close(s.events)
	close(s.done)
}
