package main

import (
	"log"
	"net/http"

	"apphost-ota/config"
	apphandlers "apphost-ota/internal/handlers"
	"apphost-ota/internal/metrics"
	infrastructure "apphost-ota/internal/router"

	"github.com/gorilla/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	metrics.InitMetrics()
	server, err := apphandlers.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	router := infrastructure.NewRouter(cfg, server)
	log.Println("Server is running on port " + cfg.Port)
	corsOptions := handlers.CORS(
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowCredentials(),
	)
	err = http.ListenAndServe("0.0.0.0:"+cfg.Port, corsOptions(router))
	if err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
