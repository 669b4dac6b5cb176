package sink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collection(id int64, status string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}})
	f.Properties["id"] = id
	f.Properties["status"] = status
	fc.Append(f)
	return fc
}

func statusOf(t *testing.T, b []byte) string {
	t.Helper()
	fc, err := geojson.UnmarshalFeatureCollection(b)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	return fc.Features[0].Properties.MustString("status")
}

func TestLatest(t *testing.T) {
	l := NewLatest()
	assert.False(t, l.Ready())
	assert.Nil(t, l.Collection())
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(l.JSON()))

	fc := collection(1, "free")
	require.NoError(t, l.Present(context.Background(), fc))
	assert.True(t, l.Ready())
	assert.Same(t, fc, l.Collection())
	assert.Equal(t, "free", statusOf(t, l.JSON()))

	require.NoError(t, l.Present(context.Background(), collection(1, "occupied")))
	assert.Equal(t, "occupied", statusOf(t, l.JSON()))
}

type stubSink struct {
	name  string
	err   error
	calls int
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Present(context.Context, *geojson.FeatureCollection) error {
	s.calls++
	return s.err
}

func TestMulti(t *testing.T) {
	a := &stubSink{name: "a"}
	b := &stubSink{name: "b", err: errors.New("down")}
	c := &stubSink{name: "c"}
	m := NewMulti(a, nil, b, c)
	err := m.Present(context.Background(), collection(1, "free"))
	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls, "a failing sink does not stop the others")
}

type fakeRedis struct {
	key, channel string
	value        []byte
	published    []byte
	setErr       error
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.key = key
	f.value = value.([]byte)
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.published = message.([]byte)
	return redis.NewIntResult(1, nil)
}

func TestRedisSink(t *testing.T) {
	t.Run("stores and publishes the full collection", func(t *testing.T) {
		fr := &fakeRedis{}
		s := NewRedis(fr, "parking:geojson", "parking:updates")
		require.NoError(t, s.Present(context.Background(), collection(2, "occupied")))
		assert.Equal(t, "parking:geojson", fr.key)
		assert.Equal(t, "parking:updates", fr.channel)
		assert.Equal(t, "occupied", statusOf(t, fr.value))
		assert.Equal(t, fr.value, fr.published)
	})

	t.Run("set failure skips publish", func(t *testing.T) {
		fr := &fakeRedis{setErr: errors.New("READONLY")}
		s := NewRedis(fr, "k", "c")
		assert.Error(t, s.Present(context.Background(), collection(2, "free")))
		assert.Nil(t, fr.published)
	})

	t.Run("empty channel only stores", func(t *testing.T) {
		fr := &fakeRedis{}
		s := NewRedis(fr, "k", "")
		require.NoError(t, s.Present(context.Background(), collection(2, "free")))
		assert.NotNil(t, fr.value)
		assert.Nil(t, fr.published)
	})
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	return b
}

func TestHub(t *testing.T) {
	latest := NewLatest()
	hub := NewHub(latest)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx := context.Background()
	fc := collection(1, "free")
	require.NoError(t, latest.Present(ctx, fc))

	conn := dial(t, srv)
	assert.Equal(t, "free", statusOf(t, read(t, conn)), "latest frame on connect")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	next := collection(1, "occupied")
	require.NoError(t, latest.Present(ctx, next))
	require.NoError(t, hub.Present(ctx, next))
	assert.Equal(t, "occupied", statusOf(t, read(t, conn)))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(latest.JSON(), &raw))
	assert.Equal(t, "FeatureCollection", raw["type"])

	hub.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, 0, hub.Clients())
}

func TestHub_Origins(t *testing.T) {
	req := func(host, origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://"+host+"/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	hub := NewHub(nil)
	assert.True(t, hub.checkOrigin(req("parking.local:8080", "")), "non-browser client")
	assert.True(t, hub.checkOrigin(req("parking.local:8080", "http://parking.local:8080")), "same origin")
	assert.False(t, hub.checkOrigin(req("parking.local:8080", "https://evil.example")))

	hub.AllowOrigins(" https://map.example.com/ ", "")
	assert.True(t, hub.checkOrigin(req("parking.local:8080", "https://map.example.com")))
	assert.False(t, hub.checkOrigin(req("parking.local:8080", "https://evil.example")))

	hub.AllowOrigins("*")
	assert.True(t, hub.checkOrigin(req("parking.local:8080", "https://evil.example")))
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	srv := httptest.NewServer(NewHub(NewLatest()))
	defer srv.Close()
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_DropsStaleFrames(t *testing.T) {
	c := &client{send: make(chan []byte, 2)}
	enqueue(c, []byte("1"))
	enqueue(c, []byte("2"))
	enqueue(c, []byte("3"))
	assert.Equal(t, []byte("2"), <-c.send)
	assert.Equal(t, []byte("3"), <-c.send)
}
