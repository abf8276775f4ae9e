package bucket

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"

	"apphost-ota/config"
	"apphost-ota/internal/types"
)

// ErrNotFound is returned when a channel, runtime version, update or file
// does not exist in the store.
var ErrNotFound = errors.New("not found in bucket")

type RuntimeVersionWithStats struct {
	RuntimeVersion  string `json:"runtimeVersion"`
	LastUpdatedAt   string `json:"lastUpdatedAt"`
	CreatedAt       string `json:"createdAt"`
	NumberOfUpdates int    `json:"numberOfUpdates"`
}

// Bucket is the bundle store: immutable update directories keyed by
// (channel, runtimeVersion, unix timestamp). The upload ingestor is the
// only writer; everything else is a read-only scan.
type Bucket interface {
	GetChannels() ([]string, error)
	GetRuntimeVersions(channel string) ([]RuntimeVersionWithStats, error)
	GetUpdates(channel string, runtimeVersion string) ([]types.Update, error)
	GetFile(update types.Update, assetPath string) (types.BucketFile, error)
	IngestUpdate(channel string, runtimeVersion string, updateId string, archive *zip.Reader) error
	DeleteUpdateFolder(channel string, runtimeVersion string, updateId string) error
}

type BucketType string

const (
	S3BucketType    BucketType = "s3"
	LocalBucketType BucketType = "local"
)

// New resolves the bucket implementation from the configured storage mode.
func New(cfg config.Config) (Bucket, error) {
	switch BucketType(cfg.StorageMode) {
	case S3BucketType:
		return NewS3Bucket(cfg)
	case LocalBucketType:
		return &LocalBucket{BasePath: cfg.LocalBucketBasePath}, nil
	}
	return nil, fmt.Errorf("unknown storage mode: %s", cfg.StorageMode)
}

func ConvertReadCloserToBytes(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("error copying file to buffer: %w", err)
	}
	return buf.Bytes(), nil
}
