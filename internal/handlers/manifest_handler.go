package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"apphost-ota/internal/crypto"
	"apphost-ota/internal/helpers"
	"apphost-ota/internal/metrics"
	"apphost-ota/internal/types"
	"apphost-ota/internal/update"

	"github.com/google/uuid"
)

// signPayload signs the exact bytes that will be written into the multipart
// part. Returns the serialized expo-signature header value, or "" when the
// client did not request signing.
func (s *Server) signPayload(payload []byte, expectSignatureHeader string) (string, int, error) {
	if expectSignatureHeader == "" {
		return "", 0, nil
	}
	privateKey, err := s.keys.GetSigningKey()
	if err != nil {
		return "", http.StatusInternalServerError, fmt.Errorf("error loading signing key: %w", err)
	}
	if privateKey == "" {
		// A missing key is an operator configuration problem, not a fault.
		return "", http.StatusBadRequest, errors.New("code signing requested but no signing key is configured")
	}
	signature, err := crypto.SignRSASHA256(payload, privateKey)
	if err != nil {
		return "", http.StatusInternalServerError, fmt.Errorf("error signing content: %w", err)
	}
	header, err := crypto.FormatSignatureHeader(signature)
	if err != nil {
		return "", http.StatusInternalServerError, fmt.Errorf("error formatting signature header: %w", err)
	}
	return header, 0, nil
}

func createMultipartPart(writer *multipart.Writer, name string, payload []byte, signatureHeader string) error {
	partHeaders := textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf("form-data; name=%q", name)},
		"Content-Type":        {"application/json; charset=utf-8"},
	}
	if signatureHeader != "" {
		partHeaders.Set("expo-signature", signatureHeader)
	}
	field, err := writer.CreatePart(partHeaders)
	if err != nil {
		return fmt.Errorf("error creating multipart field: %w", err)
	}
	if _, err := field.Write(payload); err != nil {
		return fmt.Errorf("error writing part content: %w", err)
	}
	return nil
}

// assetRequestHeaders lists the headers a client must replay when fetching
// each asset; the channel travels in a header because asset URLs only carry
// the path, runtime version and platform.
func assetRequestHeaders(manifest *types.UpdateManifest, channel string) map[string]interface{} {
	headersByKey := make(map[string]interface{}, len(manifest.Assets)+1)
	for _, asset := range manifest.Assets {
		headersByKey[asset.Key] = map[string]string{"expo-channel-name": channel}
	}
	headersByKey[manifest.LaunchAsset.Key] = map[string]string{"expo-channel-name": channel}
	return headersByKey
}

func (s *Server) writeMultipartResponse(w http.ResponseWriter, writer *multipart.Writer, buf *bytes.Buffer, protocolVersion int64, requestID string) {
	w.Header().Set("expo-protocol-version", strconv.FormatInt(protocolVersion, 10))
	w.Header().Set("expo-sfv-version", "0")
	w.Header().Set("cache-control", "private, max-age=0")
	w.Header().Set("content-type", "multipart/mixed; boundary="+writer.Boundary())
	if err := writer.Close(); err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error closing multipart writer", err)
		return
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("[RequestID: %s] Error writing response: %v", requestID, err)
	}
}

func (s *Server) putManifestInResponse(w http.ResponseWriter, r *http.Request, manifest types.UpdateManifest, channel string, protocolVersion int64, requestID string) {
	payload, err := json.Marshal(manifest)
	if err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error serializing manifest", err)
		return
	}
	signatureHeader, statusCode, err := s.signPayload(payload, r.Header.Get("expo-expect-signature"))
	if err != nil {
		errorName := errInternal
		if statusCode == http.StatusBadRequest {
			errorName = errConfig
		}
		logAndWriteJSONError(w, requestID, statusCode, errorName, err.Error(), nil)
		return
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := createMultipartPart(writer, "manifest", payload, signatureHeader); err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error creating multipart response", err)
		return
	}
	extensions, err := json.Marshal(map[string]interface{}{
		"assetRequestHeaders": assetRequestHeaders(&manifest, channel),
	})
	if err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error serializing extensions", err)
		return
	}
	if err := createMultipartPart(writer, "extensions", extensions, ""); err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error creating multipart response", err)
		return
	}
	s.writeMultipartResponse(w, writer, &buf, protocolVersion, requestID)
}

func (s *Server) putNoUpdateAvailableInResponse(w http.ResponseWriter, r *http.Request, protocolVersion int64, requestID string) {
	if protocolVersion == 0 {
		// Protocol 0 predates directives; a v0 client must never receive one.
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errProtocol, "NoUpdateAvailable directive not available in protocol version 0", nil)
		return
	}
	directive := update.CreateNoUpdateAvailableDirective()
	payload, err := json.Marshal(directive)
	if err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error serializing directive", err)
		return
	}
	signatureHeader, statusCode, err := s.signPayload(payload, r.Header.Get("expo-expect-signature"))
	if err != nil {
		errorName := errInternal
		if statusCode == http.StatusBadRequest {
			errorName = errConfig
		}
		logAndWriteJSONError(w, requestID, statusCode, errorName, err.Error(), nil)
		return
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := createMultipartPart(writer, "directive", payload, signatureHeader); err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error creating multipart response", err)
		return
	}
	s.writeMultipartResponse(w, writer, &buf, protocolVersion, requestID)
}

func resolveProtocolVersion(r *http.Request) (int64, error) {
	values := r.Header.Values("expo-protocol-version")
	if len(values) > 1 {
		return 0, errors.New("multiple expo-protocol-version headers provided")
	}
	if len(values) == 0 || values[0] == "" {
		return 0, nil
	}
	protocolVersion, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return 0, errors.New("invalid expo-protocol-version header")
	}
	return protocolVersion, nil
}

func resolvePlatform(r *http.Request) string {
	platform := r.Header.Get("expo-platform")
	if platform == "" {
		platform = r.URL.Query().Get("platform")
	}
	return platform
}

func resolveRuntimeVersion(r *http.Request) string {
	runtimeVersion := r.Header.Get("expo-runtime-version")
	if runtimeVersion == "" {
		runtimeVersion = r.URL.Query().Get("runtimeVersion")
	}
	if runtimeVersion == "" {
		runtimeVersion = r.URL.Query().Get("runtime-version")
	}
	return runtimeVersion
}

// ManifestHandler serves the expo-updates manifest protocol: it resolves
// the latest bundle for the requested channel and runtime version and
// responds with either a signed manifest or a noUpdateAvailable directive.
func (s *Server) ManifestHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	channel := helpers.ResolveExpoChannel(r.Header)
	if channel == "" {
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errValidation, "No channel name provided", nil)
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
	protocolVersion, err := resolveProtocolVersion(r)
	if err != nil {
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errProtocol, err.Error(), nil)
		return
	}
	currentUpdateId := r.Header.Get("expo-current-update-id")
	metrics.TrackActiveClient(r.Header.Get("EAS-Client-ID"), platform, runtimeVersion, channel, currentUpdateId)

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

	// The no-update branch is gated on protocol >= 1: a v0 client is served
	// the full manifest even when it already runs the latest update. The id
	// comparison is strict string equality against the derived UUID, so the
	// hash-to-UUID transform must stay stable forever.
	if protocolVersion == 1 && currentUpdateId != "" && currentUpdateId == crypto.ConvertSHA256HashToUUID(metadata.ID) {
		s.putNoUpdateAvailableInResponse(w, r, protocolVersion, requestID)
		return
	}

	manifest, err := s.updates.ComposeUpdateManifest(&metadata, *lastUpdate, platform)
	if err != nil {
		if errors.Is(err, update.ErrAssetNotFound) {
			logAndWriteJSONError(w, requestID, http.StatusNotFound, errNotFound, "Asset referenced by update is missing", err)
			return
		}
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error composing manifest", err)
		return
	}
	metrics.TrackUpdateDownload(platform, runtimeVersion, channel, metadata.ID, "update")
	s.putManifestInResponse(w, r, manifest, channel, protocolVersion, requestID)
}
