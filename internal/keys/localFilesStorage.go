package keys

import (
	"fmt"
	"os"
)

type localFilesStorage struct {
	signingKeyPath string
	cdnKeyPath     string
}

func readKeyFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading key file %s: %w", path, err)
	}
	return string(content), nil
}

func (s *localFilesStorage) GetSigningKey() (string, error) {
	return readKeyFile(s.signingKeyPath)
}

func (s *localFilesStorage) GetCDNKey() (string, error) {
	return readKeyFile(s.cdnKeyPath)
}
