package cdn

import (
	"apphost-ota/config"
	"apphost-ota/internal/keys"
)

type CDN interface {
	ComputeRedirectionURLForAsset(channel, runtimeVersion, updateId, asset string) (string, error)
}

// New returns the configured CDN, or nil when no CDN is configured and
// assets should be served directly from the bucket.
func New(cfg config.Config, keyStorage keys.Storage) CDN {
	cloudfront := &CloudfrontCDN{
		Domain:    cfg.CloudfrontDomain,
		KeyPairID: cfg.CloudfrontKeyPairID,
		Keys:      keyStorage,
	}
	if cloudfront.isAvailable() {
		return cloudfront
	}
	return nil
}
