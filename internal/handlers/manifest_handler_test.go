package handlers

import (
	stdcrypto "crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"apphost-ota/config"
	"apphost-ota/internal/crypto"
	"apphost-ota/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManifestRequest(channel, platform, runtimeVersion string) *http.Request {
	request := httptest.NewRequest("GET", "/manifest", nil)
	if channel != "" {
		request.Header.Set("expo-channel-name", channel)
	}
	if platform != "" {
		request.Header.Set("expo-platform", platform)
	}
	if runtimeVersion != "" {
		request.Header.Set("expo-runtime-version", runtimeVersion)
	}
	return request
}

func decodeErrorResponse(t *testing.T, recorder *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var response APIResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	return response
}

func TestManifestValidation(t *testing.T) {
	server, _ := newTestServer(t, nil)
	cases := []struct {
		name      string
		request   *http.Request
		errorName string
		message   string
	}{
		{
			name:      "missing channel",
			request:   newManifestRequest("", "ios", "1"),
			errorName: "ValidationError",
			message:   "No channel name provided",
		},
		{
			name:      "missing platform",
			request:   newManifestRequest("production", "", "1"),
			errorName: "ValidationError",
			message:   "Invalid platform",
		},
		{
			name:      "unsupported platform",
			request:   newManifestRequest("production", "windows", "1"),
			errorName: "ValidationError",
			message:   "Invalid platform",
		},
		{
			name:      "missing runtime version",
			request:   newManifestRequest("production", "ios", ""),
			errorName: "ValidationError",
			message:   "No runtimeVersion provided",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			server.ManifestHandler(recorder, tc.request)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			response := decodeErrorResponse(t, recorder)
			require.NotNil(t, response.Error)
			assert.Equal(t, tc.errorName, *response.Error)
			assert.Equal(t, tc.message, response.Message)
			assert.Nil(t, response.Result)
		})
	}
}

func TestManifestRejectsMultipleProtocolVersionHeaders(t *testing.T) {
	server, _ := newTestServer(t, nil)
	request := newManifestRequest("production", "ios", "1")
	request.Header.Add("expo-protocol-version", "0")
	request.Header.Add("expo-protocol-version", "1")
	recorder := httptest.NewRecorder()
	server.ManifestHandler(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	response := decodeErrorResponse(t, recorder)
	require.NotNil(t, response.Error)
	assert.Equal(t, "ProtocolError", *response.Error)
}

func TestManifestRejectsMalformedProtocolVersion(t *testing.T) {
	server, _ := newTestServer(t, nil)
	request := newManifestRequest("production", "ios", "1")
	request.Header.Set("expo-protocol-version", "two")
	recorder := httptest.NewRecorder()
	server.ManifestHandler(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	response := decodeErrorResponse(t, recorder)
	require.NotNil(t, response.Error)
	assert.Equal(t, "ProtocolError", *response.Error)
}

func TestManifestNoUpdateForChannel(t *testing.T) {
	server, _ := newTestServer(t, nil)
	recorder := httptest.NewRecorder()
	server.ManifestHandler(recorder, newManifestRequest("production", "ios", "1"))

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	response := decodeErrorResponse(t, recorder)
	require.NotNil(t, response.Error)
	assert.Equal(t, "NotFoundError", *response.Error)
	assert.Contains(t, response.Message, "production")
}

func TestManifestServesLatestUpdate(t *testing.T) {
	server, cfg := newTestServer(t, nil)
	writeBundle(t, cfg.LocalBucketBasePath, "production", "1", "100", defaultBundleFiles())
	writeBundle(t, cfg.LocalBucketBasePath, "production", "1", "200", defaultBundleFiles())

	recorder := httptest.NewRecorder()
	server.ManifestHandler(recorder, newManifestRequest("production", "ios", "1"))
	require.Equal(t, http.StatusOK, recorder.Code)

	assert.Equal(t, "0", recorder.Header().Get("expo-protocol-version"))
	assert.Equal(t, "0", recorder.Header().Get("expo-sfv-version"))
	assert.Equal(t, "private, max-age=0", recorder.Header().Get("cache-control"))

	parts := parseMultipartMixedResponse(t, recorder.Header().Get("content-type"), recorder.Body.Bytes())
	require.Contains(t, parts, "manifest")
	require.Contains(t, parts, "extensions")

	var manifest types.UpdateManifest
	require.NoError(t, json.Unmarshal([]byte(parts["manifest"].Body), &manifest))

	digest := sha256.Sum256([]byte(testMetadata))
	expectedID := crypto.ConvertSHA256HashToUUID(hex.EncodeToString(digest[:]))
	assert.Equal(t, expectedID, manifest.Id)
	assert.Equal(t, "1", manifest.RunTimeVersion)
	assert.Equal(t, "application/javascript", manifest.LaunchAsset.ContentType)
	assert.Contains(t, manifest.LaunchAsset.Url, cfg.BaseURL+"/assets?asset=bundles%2Fios.js")
	require.Len(t, manifest.Assets, 1)
	assert.Equal(t, "image/png", manifest.Assets[0].ContentType)

	var extensions struct {
		AssetRequestHeaders map[string]map[string]string `json:"assetRequestHeaders"`
	}
	require.NoError(t, json.Unmarshal([]byte(parts["extensions"].Body), &extensions))
	require.Contains(t, extensions.AssetRequestHeaders, manifest.LaunchAsset.Key)
	assert.Equal(t, "production", extensions.AssetRequestHeaders[manifest.LaunchAsset.Key]["expo-channel-name"])
	require.Contains(t, extensions.AssetRequestHeaders, manifest.Assets[0].Key)
}

func TestManifestNoUpdateAvailableGating(t *testing.T) {
	server, cfg := newTestServer(t, nil)
	writeBundle(t, cfg.LocalBucketBasePath, "production", "1", "100", defaultBundleFiles())

	digest := sha256.Sum256([]byte(testMetadata))
	currentUpdateId := crypto.ConvertSHA256HashToUUID(hex.EncodeToString(digest[:]))

	t.Run("protocol 1 with matching id serves directive", func(t *testing.T) {
		request := newManifestRequest("production", "ios", "1")
		request.Header.Set("expo-protocol-version", "1")
		request.Header.Set("expo-current-update-id", currentUpdateId)
		recorder := httptest.NewRecorder()
		server.ManifestHandler(recorder, request)

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "1", recorder.Header().Get("expo-protocol-version"))
		parts := parseMultipartMixedResponse(t, recorder.Header().Get("content-type"), recorder.Body.Bytes())
		require.Contains(t, parts, "directive")
		assert.NotContains(t, parts, "manifest")
		assert.JSONEq(t, `{"type":"noUpdateAvailable"}`, parts["directive"].Body)
	})

	t.Run("protocol 1 with stale id serves manifest", func(t *testing.T) {
		request := newManifestRequest("production", "ios", "1")
		request.Header.Set("expo-protocol-version", "1")
		request.Header.Set("expo-current-update-id", "00000000-0000-4000-8000-000000000000")
		recorder := httptest.NewRecorder()
		server.ManifestHandler(recorder, request)

		require.Equal(t, http.StatusOK, recorder.Code)
		parts := parseMultipartMixedResponse(t, recorder.Header().Get("content-type"), recorder.Body.Bytes())
		require.Contains(t, parts, "manifest")
	})

	t.Run("protocol 0 always serves manifest", func(t *testing.T) {
		request := newManifestRequest("production", "ios", "1")
		request.Header.Set("expo-current-update-id", currentUpdateId)
		recorder := httptest.NewRecorder()
		server.ManifestHandler(recorder, request)

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "0", recorder.Header().Get("expo-protocol-version"))
		parts := parseMultipartMixedResponse(t, recorder.Header().Get("content-type"), recorder.Body.Bytes())
		require.Contains(t, parts, "manifest")
		assert.NotContains(t, parts, "directive")
	})
}

func TestDirectiveRejectedUnderProtocolZero(t *testing.T) {
	server, _ := newTestServer(t, nil)
	request := newManifestRequest("production", "ios", "1")
	recorder := httptest.NewRecorder()
	server.putNoUpdateAvailableInResponse(recorder, request, 0, "test-request")

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	response := decodeErrorResponse(t, recorder)
	require.NotNil(t, response.Error)
	assert.Equal(t, "ProtocolError", *response.Error)
}

var signatureValuePattern = regexp.MustCompile(`sig="([^"]+)"`)

func verifySignature(t *testing.T, publicKey *rsa.PublicKey, signatureHeader, content string) {
	t.Helper()
	assert.Contains(t, signatureHeader, `keyid="main"`)
	match := signatureValuePattern.FindStringSubmatch(signatureHeader)
	require.Len(t, match, 2, "signature header %q has no sig parameter", signatureHeader)
	rawSignature, err := base64.StdEncoding.DecodeString(match[1])
	require.NoError(t, err)
	hashed := sha256.Sum256([]byte(content))
	require.NoError(t, rsa.VerifyPKCS1v15(publicKey, stdcrypto.SHA256, hashed[:], rawSignature))
}

func TestManifestSigning(t *testing.T) {
	keyPath, publicKey := generateSigningKey(t)
	server, cfg := newTestServer(t, func(c *config.Config) {
		c.PrivateSigningKeyPath = keyPath
	})
	writeBundle(t, cfg.LocalBucketBasePath, "production", "1", "100", defaultBundleFiles())

	request := newManifestRequest("production", "ios", "1")
	request.Header.Set("expo-expect-signature", "true")
	recorder := httptest.NewRecorder()
	server.ManifestHandler(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)

	parts := parseMultipartMixedResponse(t, recorder.Header().Get("content-type"), recorder.Body.Bytes())
	require.Contains(t, parts, "manifest")
	require.NotEmpty(t, parts["manifest"].Signature)
	verifySignature(t, publicKey, parts["manifest"].Signature, parts["manifest"].Body)
	assert.Empty(t, parts["extensions"].Signature)
}

func TestDirectiveSigning(t *testing.T) {
	keyPath, publicKey := generateSigningKey(t)
	server, cfg := newTestServer(t, func(c *config.Config) {
		c.PrivateSigningKeyPath = keyPath
	})
	writeBundle(t, cfg.LocalBucketBasePath, "production", "1", "100", defaultBundleFiles())

	digest := sha256.Sum256([]byte(testMetadata))
	request := newManifestRequest("production", "ios", "1")
	request.Header.Set("expo-protocol-version", "1")
	request.Header.Set("expo-current-update-id", crypto.ConvertSHA256HashToUUID(hex.EncodeToString(digest[:])))
	request.Header.Set("expo-expect-signature", "true")
	recorder := httptest.NewRecorder()
	server.ManifestHandler(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)

	parts := parseMultipartMixedResponse(t, recorder.Header().Get("content-type"), recorder.Body.Bytes())
	require.Contains(t, parts, "directive")
	verifySignature(t, publicKey, parts["directive"].Signature, parts["directive"].Body)
}

func TestManifestSignatureRequestedWithoutKey(t *testing.T) {
	server, cfg := newTestServer(t, nil)
	writeBundle(t, cfg.LocalBucketBasePath, "production", "1", "100", defaultBundleFiles())

	request := newManifestRequest("production", "ios", "1")
	request.Header.Set("expo-expect-signature", "true")
	recorder := httptest.NewRecorder()
	server.ManifestHandler(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	response := decodeErrorResponse(t, recorder)
	require.NotNil(t, response.Error)
	assert.Equal(t, "ConfigError", *response.Error)
}

func TestManifestResolvesRuntimeVersionFromQuery(t *testing.T) {
	server, cfg := newTestServer(t, nil)
	writeBundle(t, cfg.LocalBucketBasePath, "production", "1", "100", defaultBundleFiles())

	request := httptest.NewRequest("GET", "/manifest?platform=ios&runtime-version=1", nil)
	request.Header.Set("expo-channel-name", "production")
	recorder := httptest.NewRecorder()
	server.ManifestHandler(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)
}
