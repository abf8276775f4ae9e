package keys

import (
	"fmt"

	"apphost-ota/config"
)

type KeysStorageType string

const (
	AWSSecretsManager KeysStorageType = "aws-secrets-manager"
	LocalFiles        KeysStorageType = "local-files"
	Environment       KeysStorageType = "environment"
)

// Storage provides the PEM private keys the service signs with. An empty
// string with a nil error means the key is simply not configured; callers
// decide whether that is an error (it is for expo-expect-signature).
type Storage interface {
	GetSigningKey() (string, error)
	GetCDNKey() (string, error)
}

func New(cfg config.Config) (Storage, error) {
	switch KeysStorageType(cfg.KeysStorageType) {
	case LocalFiles:
		return &localFilesStorage{
			signingKeyPath: cfg.PrivateSigningKeyPath,
			cdnKeyPath:     cfg.CloudfrontPrivateKeyPath,
		}, nil
	case Environment:
		return &environmentStorage{
			signingKeyBase64: cfg.PrivateSigningKeyBase64,
			cdnKeyBase64:     cfg.CloudfrontPrivateKeyBase64,
		}, nil
	case AWSSecretsManager:
		return &awsSMStorage{
			cfg:              cfg,
			signingKeySecret: cfg.PrivateSigningKeySecretID,
			cdnKeySecret:     cfg.CloudfrontKeySecretID,
		}, nil
	}
	return nil, fmt.Errorf("unknown keys storage type: %s", cfg.KeysStorageType)
}
