package crypto

import (
	stdcrypto "crypto"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/dunglas/httpsfv"
	"github.com/google/uuid"
)

func CreateHash(data []byte, hashingAlgorithm, encoding string) (string, error) {
	var h hash.Hash
	switch hashingAlgorithm {
	case "sha256":
		h = sha256.New()
	case "sha512":
		h = sha512.New()
	case "md5":
		h = md5.New()
	default:
		return "", fmt.Errorf("unsupported hashing algorithm: %s", hashingAlgorithm)
	}
	if _, err := h.Write(data); err != nil {
		return "", fmt.Errorf("unable to write data into hasher: %w", err)
	}
	sum := h.Sum(nil)
	switch encoding {
	case "hex":
		return hex.EncodeToString(sum), nil
	case "base64":
		return base64.StdEncoding.EncodeToString(sum), nil
	default:
		return "", fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

// ConvertSHA256HashToUUID derives the deterministic update id from a hex
// encoded SHA-256 digest: the first 16 digest bytes with the version nibble
// forced to 4 and the variant bits forced to 10, per RFC 4122 section 4.4.
// Clients compare this string against expo-current-update-id with strict
// equality, so the transform must never change once updates are in the wild.
func ConvertSHA256HashToUUID(value string) string {
	digest, err := hex.DecodeString(value)
	if err != nil || len(digest) < 16 {
		return ""
	}
	var id uuid.UUID
	copy(id[:], digest[:16])
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id.String()
}

// GetBase64URLEncoding converts a standard base64 string into the unpadded
// URL-safe alphabet used by the expo-updates integrity check.
func GetBase64URLEncoding(encodedString string) string {
	base64EncodedString := strings.ReplaceAll(encodedString, "+", "-")
	base64EncodedString = strings.ReplaceAll(base64EncodedString, "/", "_")
	base64EncodedString = strings.TrimRight(base64EncodedString, "=")
	return base64EncodedString
}

func parseRSAPrivateKey(privateKeyPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, errors.New("invalid private key PEM format")
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return privateKey, nil
	}
	parsedKey, parseErr := x509.ParsePKCS8PrivateKey(block.Bytes)
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", parseErr)
	}
	privateKey, ok := parsedKey.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("key is not an RSA private key")
	}
	return privateKey, nil
}

// SignRSASHA256 signs data with an RSA-SHA256 PKCS#1 v1.5 signature and
// returns it base64 encoded. The caller must pass the exact bytes that go
// on the wire; re-serialization would invalidate the signature.
func SignRSASHA256(data []byte, privateKeyPEM string) (string, error) {
	privateKey, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return "", err
	}
	hashed := sha256.Sum256(data)
	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, stdcrypto.SHA256, hashed[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

// FormatSignatureHeader wraps a base64 signature into the expo-signature
// dictionary value, serialized per RFC 8941 structured field values.
func FormatSignatureHeader(signature string) (string, error) {
	dict := httpsfv.NewDictionary()
	dict.Add("keyid", httpsfv.NewItem("main"))
	dict.Add("sig", httpsfv.NewItem(signature))
	return httpsfv.Marshal(dict)
}
