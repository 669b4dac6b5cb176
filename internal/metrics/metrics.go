package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SnapshotLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_snapshot_loads_total",
		Help: "Snapshot load attempts by result",
	}, []string{"result"})
	SnapshotDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parking_snapshot_duration_ms",
		Help:    "Snapshot fetch duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_events_total",
		Help: "Change events received by kind",
	}, []string{"kind"})
	EventsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_events_dropped_total",
		Help: "Change feed payloads dropped before reconciliation",
	}, []string{"reason"})
	UpsertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_upserts_total",
		Help: "Reconciliation steps by outcome (insert or replace)",
	}, []string{"op"})
	UnknownStatusTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_unknown_status_total",
		Help: "Features carrying a status outside {free, occupied}",
	})
	OddCoordinatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_odd_coordinates_total",
		Help: "Records whose coordinate list had a dangling value",
	})
	Features = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "parking_features",
		Help: "Features in the canonical collection by status",
	}, []string{"status"})
	PresentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_presents_total",
		Help: "Render sink presents by sink and result",
	}, []string{"sink", "result"})
	FeedReconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_feed_reconnects_total",
		Help: "Change feed connection state transitions",
	}, []string{"driver", "state"})
	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parking_ws_clients",
		Help: "Connected websocket clients",
	})
)

func init() {
	prometheus.MustRegister(SnapshotLoadsTotal)
	prometheus.MustRegister(SnapshotDurationMs)
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(UpsertsTotal)
	prometheus.MustRegister(UnknownStatusTotal)
	prometheus.MustRegister(OddCoordinatesTotal)
	prometheus.MustRegister(Features)
	prometheus.MustRegister(PresentsTotal)
	prometheus.MustRegister(FeedReconnectsTotal)
	prometheus.MustRegister(WSClients)
}

// 文档注释：返回 Prometheus 指标监听器，在主入口挂载到 /metrics
func Handler() http.Handler { return promhttp.Handler() }
