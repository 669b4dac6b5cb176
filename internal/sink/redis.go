package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"
)

// redisWriter：Set/Publish 的最小子集，*redis.Client 直接满足
type redisWriter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// 文档注释：Redis 渲染端
// 背景：把完整集合写入固定键供其他进程读取，并在频道上广播；不设置过期时间。
// 约束：Channel 为空时只写键不广播。
type Redis struct {
	rc      redisWriter
	Key     string
	Channel string
}

func NewRedis(rc redisWriter, key, channel string) *Redis {
	return &Redis{rc: rc, Key: key, Channel: channel}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Present(ctx context.Context, fc *geojson.FeatureCollection) error {
	b, err := json.Marshal(fc)
	if err != nil {
		return err
	}
	if err := r.rc.Set(ctx, r.Key, b, 0).Err(); err != nil {
		return err
	}
	if r.Channel == "" {
		return nil
	}
	return r.rc.Publish(ctx, r.Channel, b).Err()
}
