package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeZipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func newUploadRequest(t *testing.T, uploadKey, channel, runtimeVersion string, archive []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if runtimeVersion != "" {
		require.NoError(t, form.WriteField("runtimeVersion", runtimeVersion))
	}
	if archive != nil {
		field, err := form.CreateFormFile("upload", "update.zip")
		require.NoError(t, err)
		_, err = field.Write(archive)
		require.NoError(t, err)
	}
	require.NoError(t, form.Close())

	request := httptest.NewRequest("POST", "/upload", &body)
	request.Header.Set("Content-Type", form.FormDataContentType())
	if uploadKey != "" {
		request.Header.Set("upload-key", uploadKey)
	}
	if channel != "" {
		request.Header.Set("expo-channel-name", channel)
	}
	return request
}

func TestUploadRequiresKey(t *testing.T) {
	server, _ := newTestServer(t, nil)
	archive := makeZipBytes(t, map[string]string{"metadata.json": testMetadata})

	recorder := httptest.NewRecorder()
	server.UploadHandler(recorder, newUploadRequest(t, "", "production", "1", archive))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	response := decodeErrorResponse(t, recorder)
	require.NotNil(t, response.Error)
	assert.Equal(t, "ValidationError", *response.Error)

	recorder = httptest.NewRecorder()
	server.UploadHandler(recorder, newUploadRequest(t, "wrong-key", "production", "1", archive))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	response = decodeErrorResponse(t, recorder)
	require.NotNil(t, response.Error)
	assert.Equal(t, "AuthError", *response.Error)
	assert.Equal(t, "Invalid upload key", response.Message)
}

func TestUploadValidation(t *testing.T) {
	server, _ := newTestServer(t, nil)
	archive := makeZipBytes(t, map[string]string{"metadata.json": testMetadata})

	recorder := httptest.NewRecorder()
	server.UploadHandler(recorder, newUploadRequest(t, "test-upload-key", "", "1", archive))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "No channel name provided", decodeErrorResponse(t, recorder).Message)

	recorder = httptest.NewRecorder()
	server.UploadHandler(recorder, newUploadRequest(t, "test-upload-key", "production", "", archive))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "No runtimeVersion provided", decodeErrorResponse(t, recorder).Message)

	recorder = httptest.NewRecorder()
	server.UploadHandler(recorder, newUploadRequest(t, "test-upload-key", "production", "1", nil))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "No upload file provided", decodeErrorResponse(t, recorder).Message)
}

func TestUploadRejectsCorruptArchive(t *testing.T) {
	server, _ := newTestServer(t, nil)

	recorder := httptest.NewRecorder()
	server.UploadHandler(recorder, newUploadRequest(t, "test-upload-key", "production", "1", []byte("not a zip")))
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	response := decodeErrorResponse(t, recorder)
	require.NotNil(t, response.Error)
	assert.Equal(t, "InternalError", *response.Error)
	assert.Equal(t, "Error opening zip archive", response.Message)
}

func TestUploadThenServeManifest(t *testing.T) {
	server, _ := newTestServer(t, nil)
	archive := makeZipBytes(t, map[string]string{
		"metadata.json":      testMetadata,
		"bundles/ios.js":     "var app = 1;",
		"bundles/android.js": "var app = 2;",
		"assets/icon":        "png-bytes",
	})

	recorder := httptest.NewRecorder()
	server.UploadHandler(recorder, newUploadRequest(t, "test-upload-key", "production", "1", archive))
	require.Equal(t, http.StatusOK, recorder.Code)
	var response APIResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Nil(t, response.Error)
	assert.Equal(t, "Upload successful", response.Message)

	recorder = httptest.NewRecorder()
	server.ManifestHandler(recorder, newManifestRequest("production", "ios", "1"))
	require.Equal(t, http.StatusOK, recorder.Code)
	parts := parseMultipartMixedResponse(t, recorder.Header().Get("content-type"), recorder.Body.Bytes())
	require.Contains(t, parts, "manifest")
}

func TestUploadInvalidatesCachedLatestUpdate(t *testing.T) {
	server, cfg := newTestServer(t, nil)
	writeBundle(t, cfg.LocalBucketBasePath, "production", "1", "100", defaultBundleFiles())

	recorder := httptest.NewRecorder()
	server.ManifestHandler(recorder, newManifestRequest("production", "ios", "1"))
	require.Equal(t, http.StatusOK, recorder.Code)

	newMetadata := `{"version":0,"bundler":"metro","fileMetadata":{"ios":{"bundle":"bundles/new.js","assets":[]},"android":{"bundle":"bundles/new.js","assets":[]}}}`
	archive := makeZipBytes(t, map[string]string{
		"metadata.json":  newMetadata,
		"bundles/new.js": "var app = 3;",
	})
	recorder = httptest.NewRecorder()
	server.UploadHandler(recorder, newUploadRequest(t, "test-upload-key", "production", "1", archive))
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = httptest.NewRecorder()
	server.ManifestHandler(recorder, newManifestRequest("production", "ios", "1"))
	require.Equal(t, http.StatusOK, recorder.Code)
	parts := parseMultipartMixedResponse(t, recorder.Header().Get("content-type"), recorder.Body.Bytes())
	assert.Contains(t, parts["manifest"].Body, "bundles%2Fnew.js")
}
