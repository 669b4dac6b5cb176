package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"parking-live/internal/logger"
	"parking-live/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb/geojson"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 4
)

// 文档注释：websocket 推送端
// 背景：地图前端连上后立即收到当前完整集合，之后每次下发都推送整份集合。
// 约束：每个连接有小缓冲；缓冲满时丢弃最旧的一帧（整体替换语义下只有最新帧有意义）。
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	latest   *Latest
	closed   bool
	origins  []string
	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub：latest 用于新连接的首帧，可为 nil
func NewHub(latest *Latest) *Hub {
	h := &Hub{clients: make(map[*client]struct{}), latest: latest}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// AllowOrigins：设置允许的 Origin（如 https://map.example.com）；"*" 放行全部
// 约束：未设置时只接受同源请求，以及不带 Origin 的非浏览器客户端
func (h *Hub) AllowOrigins(origins ...string) {
	list := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			list = append(list, o)
		}
	}
	h.mu.Lock()
	h.origins = list
	h.mu.Unlock()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	h.mu.Lock()
	allowed := h.origins
	h.mu.Unlock()
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (h *Hub) Name() string { return "ws" }

// Clients：当前连接数
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Present(_ context.Context, fc *geojson.FeatureCollection) error {
	b, err := json.Marshal(fc)
	if err != nil {
		return err
	}
	h.broadcast(b)
	return nil
}

func (h *Hub) broadcast(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		enqueue(c, b)
	}
}

func enqueue(c *client, b []byte) {
	for {
		select {
		case c.send <- b:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// ServeHTTP：升级连接并注册客户端
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn("ws_upgrade_error", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.latest != nil && h.latest.Ready() {
		enqueue(c, h.latest.JSON())
	}
	h.mu.Unlock()
	metrics.WSClients.Inc()
	logger.L().Debug("ws_connected", "ip", r.RemoteAddr)
	go h.writePump(c)
	h.readPump(c)
}

// readPump：只处理控制帧；读错误即断开
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	t := time.NewTicker(pingPeriod)
	defer func() {
		t.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				logger.L().Debug("ws_write_error", "err", err)
				return
			}
		case <-t.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		metrics.WSClients.Dec()
	}
	h.mu.Unlock()
	c.close()
}

// Close：断开全部客户端，之后的连接直接关闭
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		metrics.WSClients.Dec()
		c.close()
	}
}
