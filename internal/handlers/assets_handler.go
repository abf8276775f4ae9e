package handlers

import (
	"errors"
	"net/http"

	"apphost-ota/internal/bucket"
	"apphost-ota/internal/compression"
	"apphost-ota/internal/helpers"
	"apphost-ota/internal/metrics"
	"apphost-ota/internal/update"

	"github.com/google/uuid"
)

// AssetsHandler serves raw asset bytes for the latest bundle of a channel
// and runtime version. When a CDN is configured the client is redirected to
// a signed CDN URL instead.
func (s *Server) AssetsHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	channel := helpers.ResolveExpoChannel(r.Header)
	if channel == "" {
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errValidation, "No channel name provided", nil)
		return
	}
	assetName := r.URL.Query().Get("asset")
	if assetName == "" {
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errValidation, "No asset name provided", nil)
		return
	}
	platform := resolvePlatform(r)
	if platform != "ios" && platform != "android" {
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errValidation, "Invalid platform", nil)
		return
	}
	runtimeVersion := resolveRuntimeVersion(r)
	if runtimeVersion == "" {
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errValidation, "No runtimeVersion provided", nil)
		return
	}

	lastUpdate, err := s.updates.GetLatestUpdate(channel, runtimeVersion)
	if err != nil {
		if errors.Is(err, update.ErrNoUpdateFound) {
			logAndWriteJSONError(w, requestID, http.StatusNotFound, errNotFound, "No update found for channel "+channel+" and runtime version "+runtimeVersion, nil)
			return
		}
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error getting latest update", err)
		return
	}
	metadata, err := s.updates.GetMetadata(*lastUpdate)
	if err != nil {
		if errors.Is(err, update.ErrMetadataNotFound) {
			logAndWriteJSONError(w, requestID, http.StatusNotFound, errNotFound, "No update manifest found", err)
			return
		}
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error getting metadata", err)
		return
	}

	platformMetadata := update.PlatformMetadataFor(metadata.MetadataJSON, platform)
	isLaunchAsset := platformMetadata.Bundle == assetName
	var ext string
	for _, asset := range platformMetadata.Assets {
		if asset.Path == assetName {
			ext = asset.Ext
			break
		}
	}

	if s.cdn != nil {
		redirectURL, err := s.cdn.ComputeRedirectionURLForAsset(channel, runtimeVersion, lastUpdate.UpdateId, assetName)
		if err != nil {
			logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error computing redirection URL", err)
			return
		}
		w.Header().Set("expo-protocol-version", "1")
		w.Header().Set("expo-sfv-version", "0")
		w.Header().Set("Cache-Control", "public, max-age=31536000")
		http.Redirect(w, r, redirectURL, http.StatusFound)
		return
	}

	file, err := s.bucket.GetFile(*lastUpdate, assetName)
	if err != nil {
		if errors.Is(err, bucket.ErrNotFound) {
			logAndWriteJSONError(w, requestID, http.StatusNotFound, errNotFound, "Asset not found: "+assetName, nil)
			return
		}
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error getting asset", err)
		return
	}
	buffer, err := bucket.ConvertReadCloserToBytes(file.Reader)
	if err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error reading asset", err)
		return
	}
	metrics.TrackAssetDownload(platform, runtimeVersion, channel)

	w.Header().Set("expo-protocol-version", "1")
	w.Header().Set("expo-sfv-version", "0")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	contentType := update.ResolveContentType(ext, isLaunchAsset)
	compression.ServeCompressedAsset(w, r, buffer, contentType, requestID)
}
