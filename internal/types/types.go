package types

import (
	"encoding/json"
	"io"
	"time"
)

// Asset is one entry of a bundle's per-platform file listing.
type Asset struct {
	Path string `json:"path"`
	Ext  string `json:"ext"`
}

// PlatformMetadata describes the launch bundle and assets for one platform.
type PlatformMetadata struct {
	Bundle string  `json:"bundle"`
	Assets []Asset `json:"assets"`
}

type FileMetadata struct {
	Android PlatformMetadata `json:"android"`
	IOS     PlatformMetadata `json:"ios"`
}

// MetadataObject is the parsed metadata.json shipped inside every bundle.
type MetadataObject struct {
	Version      int          `json:"version"`
	Bundler      string       `json:"bundler"`
	FileMetadata FileMetadata `json:"fileMetadata"`
}

// UpdateMetadata couples the parsed metadata with the derived update
// identity: ID is the hex SHA-256 of the raw metadata.json bytes, so a
// bundle's identity never changes between requests or processes.
type UpdateMetadata struct {
	MetadataJSON MetadataObject `json:"metadataJSON"`
	CreatedAt    string         `json:"createdAt"`
	ID           string         `json:"id"`
}

// ManifestAsset is the wire-format asset descriptor served to clients.
type ManifestAsset struct {
	Hash          string `json:"hash"`
	Key           string `json:"key"`
	FileExtension string `json:"fileExtension"`
	ContentType   string `json:"contentType"`
	Url           string `json:"url"`
}

type ExtraManifestData struct {
	ExpoClient json.RawMessage `json:"expoClient,omitempty"`
}

type UpdateManifest struct {
	Id             string             `json:"id"`
	CreatedAt      string             `json:"createdAt"`
	RunTimeVersion string             `json:"runtimeVersion"`
	Metadata       json.RawMessage    `json:"metadata"`
	Assets         []ManifestAsset    `json:"assets"`
	LaunchAsset    ManifestAsset      `json:"launchAsset"`
	Extra          *ExtraManifestData `json:"extra,omitempty"`
}

// NoUpdateAvailableDirective tells a protocol >= 1 client that it already
// runs the latest update.
type NoUpdateAvailableDirective struct {
	Type string `json:"type"`
}

// Update identifies one immutable bundle. UpdateId is the Unix timestamp
// (seconds) directory name; numeric ordering of UpdateId is chronological
// ordering.
type Update struct {
	Channel        string
	RuntimeVersion string
	UpdateId       string
	CreatedAt      time.Duration
}

// BucketFile is a stored file plus its last-modified time.
type BucketFile struct {
	Reader    io.ReadCloser
	CreatedAt time.Time
}
