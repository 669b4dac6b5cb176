// 包 config：集中读取运行参数；调用方先用 godotenv 加载 .env，再调用 FromEnv
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config：服务运行参数
type Config struct {
	Addr    string
	APIBase string

	MigrateOnStart bool

	FeedDriver  string // postgres | redis
	FeedChannel string
	FeedSchema  string
	FeedTable   string
	FeedBuffer  int

	SinkRedisKey     string
	SinkRedisChannel string

	RateLimitEnabled bool
	RateLimitQPS     int

	WSAllowedOrigins []string // 逗号分隔；为空只接受同源
}

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// FromEnv：读取环境变量，缺省值见各字段
// 约束：数值解析失败或非正数时回退默认值；未知 FEED_DRIVER 回退 postgres
func FromEnv() Config {
	c := Config{
		Addr:             getenv("ADDR", ":8080"),
		APIBase:          strings.TrimRight(getenv("API_BASE", "/api"), "/"),
		MigrateOnStart:   getenv("MIGRATE_ON_START", "true") == "true",
		FeedDriver:       strings.ToLower(getenv("FEED_DRIVER", DriverPostgres)),
		FeedChannel:      getenv("FEED_CHANNEL", "parking_changes"),
		FeedSchema:       getenv("FEED_SCHEMA", "public"),
		FeedTable:        getenv("FEED_TABLE", "parking_data"),
		FeedBuffer:       getint("FEED_BUFFER", 256),
		SinkRedisKey:     getenv("SINK_REDIS_KEY", "parking:geojson"),
		SinkRedisChannel: getenv("SINK_REDIS_CHANNEL", "parking:updates"),
		RateLimitEnabled: os.Getenv("RATE_LIMIT_ENABLED") == "true",
		RateLimitQPS:     getint("RATE_LIMIT_QPS", 200),
		WSAllowedOrigins: getlist("WS_ALLOWED_ORIGINS"),
	}
	if c.FeedDriver != DriverRedis {
		c.FeedDriver = DriverPostgres
	}
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			return n
		}
	}
	return def
}

func getlist(k string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(k), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
