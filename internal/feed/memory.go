package feed

import (
	"context"
	"errors"
	"sync"

	"parking-live/internal/parking"
)

var ErrClosed = errors.New("feed closed")

// 文档注释：进程内订阅源
// 背景：嵌入式场景与测试直接发布已解码事件，绕过网络传输；语义与其他传输一致（过滤、按序、可取消）。
// 约束：同一时刻只支持一个订阅；Publish 在无订阅时返回 ErrClosed。
type Memory struct {
	Filter Filter
	Buffer int

	mu  sync.Mutex
	in  chan parking.ChangeEvent
	sub *Subscription
}

func NewMemory(buffer int) *Memory { return &Memory{Buffer: buffer} }

func (m *Memory) Subscribe(ctx context.Context) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in := make(chan parking.ChangeEvent)
	stop := make(chan struct{})
	var once sync.Once
	release := func() error {
		once.Do(func() { close(stop) })
		m.mu.Lock()
		if m.in == in {
			m.in = nil
		}
		m.mu.Unlock()
		return nil
	}
	sub, cctx := newSubscription(ctx, "memory", m.Buffer, m.Filter, release)
	m.in = in
	m.sub = sub
	go func() {
		defer sub.finish()
		for {
			select {
			case <-cctx.Done():
				return
			case <-stop:
				return
			case ev := <-in:
				if !ev.Matches(sub.filter.Schema, sub.filter.Table) {
					continue
				}
				select {
				case sub.events <- ev:
				case <-cctx.Done():
					return
				}
			}
		}
	}()
	return sub, nil
}

// Publish：投递一条事件，阻塞直到订阅协程接收或订阅结束
func (m *Memory) Publish(ctx context.Context, ev parking.ChangeEvent) error {
	m.mu.Lock()
	in, sub := m.in, m.sub
	m.mu.Unlock()
	if in == nil {
		return ErrClosed
	}
	select {
	case in <- ev:
		return nil
	case <-sub.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
