// 包 api：集中注册 HTTP 路由，向地图前端提供当前集合、统计与实时推送
package api

import (
	"encoding/json"
	"net/http"

	"parking-live/internal/reconcile"
	"parking-live/internal/sink"
)

// State：引擎的只读视图
type State interface {
	Ready() bool
	Counts() reconcile.Counts
	SnapshotErr() error
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
// 约束：hub 为 nil 时不注册 /ws
func BuildRoutes(st State, latest *sink.Latest, hub *sink.Hub) *http.ServeMux {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/parking", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("content-type", "application/geo+json; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write(latest.JSON())
	})

	apiMux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st.Counts())
	})

	apiMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !st.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
			return
		}
		// 快照失败时仍以空集合提供服务，错误原因单独给出以区别于空表
		body := map[string]any{"ready": true}
		if err := st.SnapshotErr(); err != nil {
			body["snapshot_error"] = err.Error()
		}
		writeJSON(w, http.StatusOK, body)
	})

	if hub != nil {
		apiMux.Handle("/ws", hub)
	}
	return apiMux
}
