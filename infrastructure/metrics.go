package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsQueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gigflow_notifications_queued_total",
		Help: "notifications accepted or dropped by the async notifier",
	}, []string{"type", "result"})

	notificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gigflow_notifications_delivered_total",
		Help: "notification handoffs to the sink by result",
	}, []string{"type", "result"})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gigflow_ws_connections",
		Help: "open websocket notification connections",
	})
)
