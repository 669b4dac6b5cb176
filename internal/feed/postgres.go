package feed

import (
	"context"
	"time"

	"parking-live/internal/logger"
	"parking-live/internal/metrics"

	"github.com/lib/pq"
)

// notifier：pq.Listener 的最小子集，便于测试替换
type notifier interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Postgres：基于 LISTEN/NOTIFY 的变更订阅
// 约束：断线重连由 pq.Listener 负责，仅记录日志与计数；重连期间丢失的通知不做补偿
type Postgres struct {
	Channel      string
	Filter       Filter
	Buffer       int
	PingInterval time.Duration
	// Fetch 用于补齐超出 pg_notify 上限、只带 ref 的通知；为空时这类通知被丢弃
	Fetch FetchFunc

	newNotifier func() notifier
}

// 文档注释：构造 Postgres 订阅器
// 参数：dsn 与快照连接池相同；LISTEN 需要独占连接，因此单独建立。
func NewPostgres(dsn, channel string, f Filter, buffer int) *Postgres {
	p := &Postgres{Channel: channel, Filter: f, Buffer: buffer, PingInterval: 90 * time.Second}
	p.newNotifier = func() notifier {
		return pq.NewListener(dsn, 2*time.Second, time.Minute, listenerEvent)
	}
	return p
}

func listenerEvent(ev pq.ListenerEventType, err error) {
	l := logger.L()
	switch ev {
	case pq.ListenerEventConnected:
		metrics.FeedReconnectsTotal.WithLabelValues("postgres", "connected").Inc()
		l.Info("feed_pg_connected")
	case pq.ListenerEventDisconnected:
		metrics.FeedReconnectsTotal.WithLabelValues("postgres", "disconnected").Inc()
		l.Warn("feed_pg_disconnected", "err", err)
	case pq.ListenerEventReconnected:
		metrics.FeedReconnectsTotal.WithLabelValues("postgres", "reconnected").Inc()
		l.Info("feed_pg_reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		metrics.FeedReconnectsTotal.WithLabelValues("postgres", "attempt_failed").Inc()
		l.Error("feed_pg_connect_failed", "err", err)
	}
}

func (p *Postgres) Subscribe(ctx context.Context) (*Subscription, error) {
	n := p.newNotifier()
	// Listen 会一直等到连接建立，只有关闭 listener 才能打断
	errc := make(chan error, 1)
	go func() { errc <- n.Listen(p.Channel) }()
	select {
	case err := <-errc:
		if err != nil {
			_ = n.Close()
			return nil, err
		}
	case <-ctx.Done():
		_ = n.Close()
		<-errc
		return nil, ctx.Err()
	}
	logger.L().Info("feed_subscribed", "driver", "postgres", "channel", p.Channel)
	sub, cctx := newSubscription(ctx, "postgres", p.Buffer, p.Filter, n.Close)
	sub.fetch = p.Fetch
	go p.run(cctx, sub, n)
	return sub, nil
}

func (p *Postgres) run(ctx context.Context, sub *Subscription, n notifier) {
	defer sub.finish()
	interval := p.PingInterval
	if interval <= 0 {
		interval = 90 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	ch := n.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			go func() {
				if err := n.Ping(); err != nil {
					logger.L().Warn("feed_pg_ping_error", "err", err)
				}
			}()
		case nt, ok := <-ch:
			if !ok {
				logger.L().Warn("feed_pg_channel_closed")
				return
			}
			// 重连后 pq 会投递一个 nil 通知
			if nt == nil {
				logger.L().Debug("feed_pg_reconnect_marker")
				continue
			}
			if !sub.deliver(ctx, []byte(nt.Extra)) {
				return
			}
		}
	}
}
