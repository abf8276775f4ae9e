package handlers

import (
	"apphost-ota/config"
	"apphost-ota/internal/bucket"
	"apphost-ota/internal/cache"
	"apphost-ota/internal/cdn"
	"apphost-ota/internal/keys"
	"apphost-ota/internal/notify"
	"apphost-ota/internal/update"
)

// Server wires the OTA core together. All collaborators are injected so
// tests can run against fixture directories and throwaway keys.
type Server struct {
	cfg      config.Config
	bucket   bucket.Bucket
	cache    cache.Cache
	keys     keys.Storage
	cdn      cdn.CDN
	updates  *update.Service
	notifier *notify.Notifier
}

func NewServer(cfg config.Config) (*Server, error) {
	resolvedBucket, err := bucket.New(cfg)
	if err != nil {
		return nil, err
	}
	resolvedCache, err := cache.New(cfg)
	if err != nil {
		return nil, err
	}
	keyStorage, err := keys.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:    cfg,
		bucket: resolvedBucket,
		cache:  resolvedCache,
		keys:   keyStorage,
		cdn:    cdn.New(cfg, keyStorage),
		updates: &update.Service{
			Bucket:  resolvedBucket,
			Cache:   resolvedCache,
			BaseURL: cfg.BaseURL,
		},
		notifier: notify.New(cfg.WebhookURL),
	}, nil
}
