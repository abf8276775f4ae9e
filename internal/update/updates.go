package update

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"sort"
	"sync"

	"apphost-ota/internal/bucket"
	"apphost-ota/internal/cache"
	"apphost-ota/internal/crypto"
	"apphost-ota/internal/types"
)

var (
	// ErrNoUpdateFound means no bundle exists for the channel/runtime pair.
	ErrNoUpdateFound = errors.New("no update found")
	// ErrMetadataNotFound means the bundle has no readable metadata.json;
	// the HTTP layer reports it as a 404, not a server fault.
	ErrMetadataNotFound = errors.New("update metadata not found")
	// ErrAssetNotFound means a referenced asset file is missing.
	ErrAssetNotFound = errors.New("asset not found")
)

const metadataFileName = "metadata.json"
const expoConfigFileName = "expoConfig.json"
const createdAtFormat = "2006-01-02T15:04:05.000Z"

// Service resolves bundles and assembles wire manifests. It holds no state
// of its own; everything is re-derived from the bucket per request, with the
// cache as a pure lookup shortcut.
type Service struct {
	Bucket  bucket.Bucket
	Cache   cache.Cache
	BaseURL string
}

func sortUpdates(updates []types.Update) []types.Update {
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].CreatedAt > updates[j].CreatedAt
	})
	return updates
}

func (s *Service) GetAllUpdates(channel string, runtimeVersion string) ([]types.Update, error) {
	updates, err := s.Bucket.GetUpdates(channel, runtimeVersion)
	if err != nil {
		return nil, err
	}
	return sortUpdates(updates), nil
}

func ComputeLastUpdateCacheKey(channel string, runtimeVersion string) string {
	return fmt.Sprintf("lastUpdate:%s:%s", channel, runtimeVersion)
}

// GetLatestUpdate returns the bundle with the numerically largest timestamp
// that carries readable metadata, or ErrNoUpdateFound.
func (s *Service) GetLatestUpdate(channel string, runtimeVersion string) (*types.Update, error) {
	cacheKey := ComputeLastUpdateCacheKey(channel, runtimeVersion)
	if cachedValue := s.Cache.Get(cacheKey); cachedValue != "" {
		var update types.Update
		if err := json.Unmarshal([]byte(cachedValue), &update); err != nil {
			return nil, err
		}
		return &update, nil
	}
	updates, err := s.GetAllUpdates(channel, runtimeVersion)
	if err != nil {
		return nil, err
	}
	for i := range updates {
		if _, err := s.GetMetadata(updates[i]); err != nil {
			continue
		}
		cacheValue, err := json.Marshal(updates[i])
		if err != nil {
			return nil, err
		}
		ttl := 1800
		_ = s.Cache.Set(cacheKey, string(cacheValue), &ttl)
		return &updates[i], nil
	}
	return nil, ErrNoUpdateFound
}

// InvalidateLatestUpdate drops the cached latest-update entry after a new
// bundle is ingested.
func (s *Service) InvalidateLatestUpdate(channel string, runtimeVersion string) {
	s.Cache.Delete(ComputeLastUpdateCacheKey(channel, runtimeVersion))
}

// GetMetadata loads and parses the bundle's metadata.json. The update id is
// the hex SHA-256 of the raw file bytes, so identical bundle contents yield
// an identical id across requests and processes.
func (s *Service) GetMetadata(update types.Update) (types.UpdateMetadata, error) {
	file, errFile := s.Bucket.GetFile(update, metadataFileName)
	if errFile != nil {
		return types.UpdateMetadata{}, fmt.Errorf("%w: %v", ErrMetadataNotFound, errFile)
	}
	rawMetadata, err := bucket.ConvertReadCloserToBytes(file.Reader)
	if err != nil {
		return types.UpdateMetadata{}, err
	}
	var metadataJson types.MetadataObject
	if err := json.Unmarshal(rawMetadata, &metadataJson); err != nil {
		return types.UpdateMetadata{}, fmt.Errorf("%w: %v", ErrMetadataNotFound, err)
	}
	id, errHash := crypto.CreateHash(rawMetadata, "sha256", "hex")
	if errHash != nil {
		return types.UpdateMetadata{}, errHash
	}
	return types.UpdateMetadata{
		MetadataJSON: metadataJson,
		CreatedAt:    file.CreatedAt.UTC().Format(createdAtFormat),
		ID:           id,
	}, nil
}

// PlatformMetadataFor selects the ios or android file listing. The caller
// has already validated the platform value.
func PlatformMetadataFor(metadata types.MetadataObject, platform string) types.PlatformMetadata {
	if platform == "android" {
		return metadata.FileMetadata.Android
	}
	return metadata.FileMetadata.IOS
}

// GetExpoConfig returns the optional expoConfig.json shipped with a bundle,
// or nil when the bundle has none.
func (s *Service) GetExpoConfig(update types.Update) json.RawMessage {
	resp, err := s.Bucket.GetFile(update, expoConfigFileName)
	if err != nil {
		return nil
	}
	defer resp.Reader.Close()
	var expoConfig json.RawMessage
	if err := json.NewDecoder(resp.Reader).Decode(&expoConfig); err != nil {
		return nil
	}
	return expoConfig
}

func BuildAssetURL(baseURL, assetFilePath, runtimeVersion, platform string) (string, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	query := url.Values{}
	query.Set("asset", assetFilePath)
	query.Set("runtimeVersion", runtimeVersion)
	query.Set("platform", platform)
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}

func (s *Service) assetEndpoint() string {
	return s.BaseURL + "/assets"
}

// ResolveContentType applies the protocol's content-type rules: the launch
// asset is always served as JavaScript, everything else resolves through a
// MIME lookup on the extension and falls back to an empty string.
func ResolveContentType(ext string, isLaunchAsset bool) string {
	if isLaunchAsset {
		return "application/javascript"
	}
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension("." + ext)
}

func (s *Service) shapeManifestAsset(update types.Update, asset *types.Asset, isLaunchAsset bool, platform string) (types.ManifestAsset, error) {
	assetFile, errAssetFile := s.Bucket.GetFile(update, asset.Path)
	if errAssetFile != nil {
		return types.ManifestAsset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, asset.Path)
	}
	byteAsset, errAsset := bucket.ConvertReadCloserToBytes(assetFile.Reader)
	if errAsset != nil {
		return types.ManifestAsset{}, errAsset
	}
	assetHash, errHash := crypto.CreateHash(byteAsset, "sha256", "base64")
	if errHash != nil {
		return types.ManifestAsset{}, errHash
	}
	key, errKey := crypto.CreateHash(byteAsset, "sha256", "hex")
	if errKey != nil {
		return types.ManifestAsset{}, errKey
	}

	keyExtensionSuffix := asset.Ext
	if isLaunchAsset {
		keyExtensionSuffix = "bundle"
	}
	finalUrl, errUrl := BuildAssetURL(s.assetEndpoint(), asset.Path, update.RuntimeVersion, platform)
	if errUrl != nil {
		return types.ManifestAsset{}, errUrl
	}
	return types.ManifestAsset{
		Hash:          crypto.GetBase64URLEncoding(assetHash),
		Key:           key,
		FileExtension: "." + keyExtensionSuffix,
		ContentType:   ResolveContentType(asset.Ext, isLaunchAsset),
		Url:           finalUrl,
	}, nil
}

// ComposeUpdateManifest assembles the full wire manifest for one platform.
// Asset descriptors are shaped concurrently since each one reads and hashes
// a file.
func (s *Service) ComposeUpdateManifest(metadata *types.UpdateMetadata, update types.Update, platform string) (types.UpdateManifest, error) {
	platformSpecificMetadata := PlatformMetadataFor(metadata.MetadataJSON, platform)
	if platformSpecificMetadata.Bundle == "" {
		return types.UpdateManifest{}, fmt.Errorf("metadata has no launch bundle for platform %s", platform)
	}

	var (
		assets = make([]types.ManifestAsset, len(platformSpecificMetadata.Assets))
		errs   = make(chan error, len(platformSpecificMetadata.Assets))
		wg     sync.WaitGroup
	)
	for i, a := range platformSpecificMetadata.Assets {
		wg.Add(1)
		go func(index int, asset types.Asset) {
			defer wg.Done()
			shapedAsset, errShape := s.shapeManifestAsset(update, &asset, false, platform)
			if errShape != nil {
				errs <- errShape
				return
			}
			assets[index] = shapedAsset
		}(i, a)
	}
	wg.Wait()
	close(errs)
	if len(errs) > 0 {
		return types.UpdateManifest{}, <-errs
	}

	launchAsset, errShape := s.shapeManifestAsset(update, &types.Asset{
		Path: platformSpecificMetadata.Bundle,
		Ext:  "",
	}, true, platform)
	if errShape != nil {
		return types.UpdateManifest{}, errShape
	}

	manifest := types.UpdateManifest{
		Id:             crypto.ConvertSHA256HashToUUID(metadata.ID),
		CreatedAt:      metadata.CreatedAt,
		RunTimeVersion: update.RuntimeVersion,
		Metadata:       json.RawMessage("{}"),
		Assets:         assets,
		LaunchAsset:    launchAsset,
	}
	if expoConfig := s.GetExpoConfig(update); expoConfig != nil {
		manifest.Extra = &types.ExtraManifestData{ExpoClient: expoConfig}
	}
	return manifest, nil
}

func CreateNoUpdateAvailableDirective() types.NoUpdateAvailableDirective {
	return types.NoUpdateAvailableDirective{
		Type: "noUpdateAvailable",
	}
}
