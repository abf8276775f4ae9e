package keys

import (
	"context"

	"apphost-ota/config"
	"apphost-ota/internal/services"
)

type awsSMStorage struct {
	cfg              config.Config
	signingKeySecret string
	cdnKeySecret     string
}

func (s *awsSMStorage) fetch(secretID string) (string, error) {
	if secretID == "" {
		return "", nil
	}
	return services.FetchSecret(context.Background(), s.cfg, secretID)
}

func (s *awsSMStorage) GetSigningKey() (string, error) {
	return s.fetch(s.signingKeySecret)
}

func (s *awsSMStorage) GetCDNKey() (string, error) {
	return s.fetch(s.cdnKeySecret)
}
