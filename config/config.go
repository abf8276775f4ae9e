package config

import (
	"flag"
	"fmt"
	"log"
	"os"

	"apphost-ota/internal/helpers"

	"github.com/joho/godotenv"
)

// Config carries every setting the OTA core needs. It is built once at
// startup and injected into the server constructor so that tests can run
// against fixture directories and throwaway keys without touching the
// process environment.
type Config struct {
	Port    string
	BaseURL string

	StorageMode         string
	LocalBucketBasePath string
	S3BucketName        string
	AWSRegion           string
	AWSBaseEndpoint     string

	UploadKey string

	KeysStorageType            string
	PrivateSigningKeyPath      string
	PrivateSigningKeyBase64    string
	PrivateSigningKeySecretID  string
	CloudfrontPrivateKeyPath   string
	CloudfrontPrivateKeyBase64 string
	CloudfrontKeySecretID      string

	CacheMode     string
	RedisHost     string
	RedisPort     string
	RedisPassword string

	CloudfrontDomain    string
	CloudfrontKeyPairID string

	WebhookURL string
}

var DefaultEnvValues = map[string]string{
	"PORT":                   "3000",
	"BASE_URL":               "http://localhost:3000",
	"STORAGE_MODE":           "local",
	"LOCAL_BUCKET_BASE_PATH": "./updates",
	"KEYS_STORAGE_TYPE":      "local-files",
	"CACHE_MODE":             "local",
	"AWS_REGION":             "eu-west-3",
	"REDIS_PORT":             "6379",
}

func GetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		return DefaultEnvValues[key]
	}
	return value
}

func IsTestMode() bool {
	return flag.Lookup("test.v") != nil
}

func validateStorageMode(storageMode string) bool {
	return storageMode == "local" || storageMode == "s3"
}

func validateKeysStorageType(keysStorageType string) bool {
	switch keysStorageType {
	case "local-files", "environment", "aws-secrets-manager":
		return true
	}
	return false
}

// Load reads .env (when present), assembles the configuration from the
// environment and validates it.
func Load() (Config, error) {
	if !IsTestMode() {
		if err := godotenv.Load(); err != nil {
			log.Printf("No .env file found, continuing with runtime environment variables.")
		}
	}
	cfg := Config{
		Port:                       GetEnv("PORT"),
		BaseURL:                    GetEnv("BASE_URL"),
		StorageMode:                GetEnv("STORAGE_MODE"),
		LocalBucketBasePath:        GetEnv("LOCAL_BUCKET_BASE_PATH"),
		S3BucketName:               GetEnv("S3_BUCKET_NAME"),
		AWSRegion:                  GetEnv("AWS_REGION"),
		AWSBaseEndpoint:            GetEnv("AWS_BASE_ENDPOINT"),
		UploadKey:                  GetEnv("UPLOAD_KEY"),
		KeysStorageType:            GetEnv("KEYS_STORAGE_TYPE"),
		PrivateSigningKeyPath:      GetEnv("PRIVATE_SIGNING_KEY_PATH"),
		PrivateSigningKeyBase64:    GetEnv("PRIVATE_SIGNING_KEY_B64"),
		PrivateSigningKeySecretID:  GetEnv("PRIVATE_SIGNING_KEY_SECRET_ID"),
		CloudfrontPrivateKeyPath:   GetEnv("CLOUDFRONT_PRIVATE_KEY_PATH"),
		CloudfrontPrivateKeyBase64: GetEnv("CLOUDFRONT_PRIVATE_KEY_B64"),
		CloudfrontKeySecretID:      GetEnv("CLOUDFRONT_KEY_SECRET_ID"),
		CacheMode:                  GetEnv("CACHE_MODE"),
		RedisHost:                  GetEnv("REDIS_HOST"),
		RedisPort:                  GetEnv("REDIS_PORT"),
		RedisPassword:              GetEnv("REDIS_PASSWORD"),
		CloudfrontDomain:           GetEnv("CLOUDFRONT_DOMAIN"),
		CloudfrontKeyPairID:        GetEnv("CLOUDFRONT_KEY_PAIR_ID"),
		WebhookURL:                 GetEnv("WEBHOOK_URL"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !validateStorageMode(c.StorageMode) {
		return fmt.Errorf("invalid STORAGE_MODE: %s", c.StorageMode)
	}
	if c.StorageMode == "s3" {
		if c.S3BucketName == "" {
			return fmt.Errorf("S3_BUCKET_NAME not set")
		}
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION not set")
		}
	}
	if c.StorageMode == "local" && c.LocalBucketBasePath == "" {
		return fmt.Errorf("LOCAL_BUCKET_BASE_PATH not set")
	}
	if !validateKeysStorageType(c.KeysStorageType) {
		return fmt.Errorf("invalid KEYS_STORAGE_TYPE: %s", c.KeysStorageType)
	}
	if c.BaseURL == "" || !helpers.IsValidURL(c.BaseURL) {
		return fmt.Errorf("invalid BASE_URL: %s", c.BaseURL)
	}
	if c.UploadKey == "" {
		return fmt.Errorf("UPLOAD_KEY not set")
	}
	return nil
}
