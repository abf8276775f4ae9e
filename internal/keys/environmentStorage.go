package keys

import (
	"encoding/base64"
	"fmt"
)

type environmentStorage struct {
	signingKeyBase64 string
	cdnKeyBase64     string
}

func decodeKey(key string) (string, error) {
	if key == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 key: %w", err)
	}
	return string(decoded), nil
}

func (s *environmentStorage) GetSigningKey() (string, error) {
	return decodeKey(s.signingKeyBase64)
}

func (s *environmentStorage) GetCDNKey() (string, error) {
	return decodeKey(s.cdnKeyBase64)
}
