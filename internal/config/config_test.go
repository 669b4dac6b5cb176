package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "API_BASE", "MIGRATE_ON_START", "FEED_DRIVER", "FEED_CHANNEL", "FEED_SCHEMA",
		"FEED_TABLE", "FEED_BUFFER", "SINK_REDIS_KEY", "SINK_REDIS_CHANNEL", "RATE_LIMIT_ENABLED", "RATE_LIMIT_QPS", "WS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "/api", c.APIBase)
	assert.True(t, c.MigrateOnStart)
	assert.Equal(t, DriverPostgres, c.FeedDriver)
	assert.Equal(t, "parking_changes", c.FeedChannel)
	assert.Equal(t, "public", c.FeedSchema)
	assert.Equal(t, "parking_data", c.FeedTable)
	assert.Equal(t, 256, c.FeedBuffer)
	assert.Equal(t, "parking:geojson", c.SinkRedisKey)
	assert.Equal(t, "parking:updates", c.SinkRedisChannel)
	assert.False(t, c.RateLimitEnabled)
	assert.Equal(t, 200, c.RateLimitQPS)
	assert.Empty(t, c.WSAllowedOrigins)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("API_BASE", "/v1/")
	t.Setenv("FEED_DRIVER", "Redis")
	t.Setenv("FEED_BUFFER", "16")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_QPS", "-3")
	c := FromEnv()
	assert.Equal(t, "/v1", c.APIBase)
	assert.Equal(t, DriverRedis, c.FeedDriver)
	assert.Equal(t, 16, c.FeedBuffer)
	assert.False(t, c.MigrateOnStart)
	assert.True(t, c.RateLimitEnabled)
	assert.Equal(t, 200, c.RateLimitQPS, "non-positive falls back")
}

func TestFromEnv_AllowedOrigins(t *testing.T) {
	t.Setenv("WS_ALLOWED_ORIGINS", " https://map.example.com, ,http://localhost:5173 ")
	assert.Equal(t, []string{"https://map.example.com", "http://localhost:5173"}, FromEnv().WSAllowedOrigins)
}

func TestFromEnv_UnknownDriver(t *testing.T) {
	t.Setenv("FEED_DRIVER", "kafka")
	assert.Equal(t, DriverPostgres, FromEnv().FeedDriver)
}
