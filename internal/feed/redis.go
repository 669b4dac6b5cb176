package feed

import (
	"context"

	"parking-live/internal/logger"

	"github.com/redis/go-redis/v9"
)

// pubsub：redis.PubSub 的最小子集
type pubsub interface {
	Receive(ctx context.Context) (interface{}, error)
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// Redis：基于 Pub/Sub 的变更订阅，载荷与 Postgres 通知相同的信封 JSON
// 约束：go-redis 在断线后自动重新订阅；期间发布的消息不可恢复
type Redis struct {
	Channel string
	Filter  Filter
	Buffer  int

	open func(ctx context.Context, channel string) pubsub
}

func NewRedis(rc *redis.Client, channel string, f Filter, buffer int) *Redis {
	return &Redis{
		Channel: channel,
		Filter:  f,
		Buffer:  buffer,
		open: func(ctx context.Context, channel string) pubsub {
			return rc.Subscribe(ctx, channel)
		},
	}
}

func (r *Redis) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := r.open(ctx, r.Channel)
	// 等待订阅确认，连接失败在此处暴露
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	logger.L().Info("feed_subscribed", "driver", "redis", "channel", r.Channel)
	sub, cctx := newSubscription(ctx, "redis", r.Buffer, r.Filter, ps.Close)
	go func() {
		defer sub.finish()
		ch := ps.Channel()
		for {
			select {
			case <-cctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					logger.L().Warn("feed_redis_channel_closed")
					return
				}
				if !sub.deliver(cctx, []byte(m.Payload)) {
					return
				}
			}
		}
	}()
	return sub, nil
}
