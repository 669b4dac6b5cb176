package sink

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/paulmach/orb/geojson"
)

// 文档注释：最近一次下发的集合
// 背景：通过 atomic.Value 无锁切换，HTTP 读路径不阻塞引擎；同时缓存编码结果避免重复序列化。
type Latest struct {
	v atomic.Value // *frame
}

type frame struct {
	fc   *geojson.FeatureCollection
	body []byte
}

func NewLatest() *Latest { return &Latest{} }

func (l *Latest) Name() string { return "latest" }

func (l *Latest) Present(_ context.Context, fc *geojson.FeatureCollection) error {
	b, err := json.Marshal(fc)
	if err != nil {
		return err
	}
	l.v.Store(&frame{fc: fc, body: b})
	return nil
}

// Ready：是否已收到过一次集合
func (l *Latest) Ready() bool { return l.v.Load() != nil }

// JSON：最近一次集合的编码；未就绪时返回空集合
func (l *Latest) JSON() []byte {
	if f, ok := l.v.Load().(*frame); ok {
		return f.body
	}
	return []byte(`{"type":"FeatureCollection","features":[]}`)
}

// Collection：最近一次集合；未就绪时为 nil
func (l *Latest) Collection() *geojson.FeatureCollection {
	if f, ok := l.v.Load().(*frame); ok {
		return f.fc
	}
	return nil
}
