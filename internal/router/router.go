package infrastructure

import (
	"net/http"

	"apphost-ota/config"
	"apphost-ota/internal/handlers"
	"apphost-ota/internal/metrics"
	"apphost-ota/internal/middleware"

	"github.com/gorilla/mux"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func NewRouter(cfg config.Config, server *handlers.Server) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)

	r.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.PrometheusHandler().ServeHTTP(w, r)
	}).Methods(http.MethodGet)

	r.HandleFunc("/hc", HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/manifest", server.ManifestHandler).Methods(http.MethodGet)
	r.HandleFunc("/assets", server.AssetsHandler).Methods(http.MethodGet)
	r.HandleFunc("/upload", server.UploadHandler).Methods(http.MethodPost)

	apiSubrouter := r.PathPrefix("/api").Subrouter()
	apiSubrouter.Use(middleware.UploadKeyMiddleware(cfg.UploadKey))
	apiSubrouter.HandleFunc("/channels", server.GetChannelsHandler).Methods(http.MethodGet)
	apiSubrouter.HandleFunc("/channels/{CHANNEL}/runtimeVersions", server.GetRuntimeVersionsHandler).Methods(http.MethodGet)
	apiSubrouter.HandleFunc("/channels/{CHANNEL}/runtimeVersion/{RUNTIME_VERSION}/updates", server.GetUpdatesHandler).Methods(http.MethodGet)
	return r
}
