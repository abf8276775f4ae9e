package handlers

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"apphost-ota/config"

	"github.com/stretchr/testify/require"
)

const testMetadata = `{
  "version": 0,
  "bundler": "metro",
  "fileMetadata": {
    "ios": {
      "bundle": "bundles/ios.js",
      "assets": [{"path": "assets/icon", "ext": "png"}]
    },
    "android": {
      "bundle": "bundles/android.js",
      "assets": []
    }
  }
}`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Port:                "3000",
		BaseURL:             "http://localhost:3000",
		StorageMode:         "local",
		LocalBucketBasePath: t.TempDir(),
		KeysStorageType:     "local-files",
		CacheMode:           "local",
		UploadKey:           "test-upload-key",
	}
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, config.Config) {
	t.Helper()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	server, err := NewServer(cfg)
	require.NoError(t, err)
	return server, cfg
}

func writeBundle(t *testing.T, basePath, channel, runtimeVersion, updateId string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(basePath, channel, runtimeVersion, updateId)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func defaultBundleFiles() map[string]string {
	return map[string]string{
		"metadata.json":      testMetadata,
		"bundles/ios.js":     "var app = 1;",
		"bundles/android.js": "var app = 2;",
		"assets/icon":        "png-bytes",
	}
}

// generateSigningKey writes a fresh PKCS#1 RSA key to disk and returns its
// path together with the public key for verification.
func generateSigningKey(t *testing.T) (string, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	keyPath := filepath.Join(t.TempDir(), "signing-key.pem")
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))
	return keyPath, &privateKey.PublicKey
}

type multipartPart struct {
	Name      string
	Body      string
	Signature string
}

// parseMultipartMixedResponse mirrors the client side of the manifest
// protocol: split the multipart/mixed body into its named parts.
func parseMultipartMixedResponse(t *testing.T, contentTypeHeader string, body []byte) map[string]multipartPart {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(contentTypeHeader)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(mediaType, "multipart/"), "expected multipart response, got %s", mediaType)
	boundary, ok := params["boundary"]
	require.True(t, ok, "multipart response has no boundary")

	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	parts := make(map[string]multipartPart)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(part)
		require.NoError(t, err)
		_, dispositionParams, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		require.NoError(t, err)
		parts[dispositionParams["name"]] = multipartPart{
			Name:      dispositionParams["name"],
			Body:      string(content),
			Signature: part.Header.Get("expo-signature"),
		}
	}
	return parts
}
