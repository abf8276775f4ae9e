package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	activeClientsVec = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_clients_total",
			Help: "Unique active clients per clientId, platform, runtime version, channel and update",
		},
		[]string{"clientId", "platform", "runtime", "channel", "update"},
	)
	updateDownloadsVec = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "update_downloads_total",
			Help: "Update manifest downloads per platform, runtime version, channel and update",
		},
		[]string{"platform", "runtime", "channel", "update", "updateType"},
	)
	assetDownloadsVec = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_downloads_total",
			Help: "Asset downloads per platform, runtime version and channel",
		},
		[]string{"platform", "runtime", "channel"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(activeClientsVec)
	prometheus.MustRegister(updateDownloadsVec)
	prometheus.MustRegister(assetDownloadsVec)
}

func TrackActiveClient(clientId, platform, runtime, channel, update string) {
	if clientId == "" || update == "" || platform == "" || channel == "" {
		return
	}
	activeClientsVec.WithLabelValues(clientId, platform, runtime, channel, update).Set(1)
}

func TrackUpdateDownload(platform, runtime, channel, update, updateType string) {
	if update == "" || platform == "" || channel == "" {
		return
	}
	updateDownloadsVec.WithLabelValues(platform, runtime, channel, update, updateType).Inc()
}

func TrackAssetDownload(platform, runtime, channel string) {
	if platform == "" || channel == "" {
		return
	}
	assetDownloadsVec.WithLabelValues(platform, runtime, channel).Inc()
}

func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}
