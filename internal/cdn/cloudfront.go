package cdn

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"time"

	"apphost-ota/internal/keys"

	"github.com/aws/aws-sdk-go-v2/feature/cloudfront/sign"
)

type CloudfrontCDN struct {
	Domain    string
	KeyPairID string
	Keys      keys.Storage
}

func (c *CloudfrontCDN) isAvailable() bool {
	if c.Domain == "" || c.KeyPairID == "" {
		return false
	}
	privateKey, err := c.Keys.GetCDNKey()
	return err == nil && privateKey != ""
}

func getSigner(key string) (crypto.Signer, error) {
	reader := bytes.NewReader([]byte(key))
	privateKey, err := sign.LoadPEMPrivKeyPKCS8AsSigner(reader)
	if err != nil {
		reader = bytes.NewReader([]byte(key))
		privateKey, err = sign.LoadPEMPrivKey(reader)
		if err != nil {
			return nil, fmt.Errorf("error parsing private key: %w", err)
		}
	}
	return privateKey, nil
}

// ComputeRedirectionURLForAsset signs a CloudFront URL for the stored asset
// with a short-lived canned policy.
func (c *CloudfrontCDN) ComputeRedirectionURLForAsset(channel, runtimeVersion, updateId, asset string) (string, error) {
	privateCert, err := c.Keys.GetCDNKey()
	if err != nil {
		return "", err
	}
	if c.Domain == "" || c.KeyPairID == "" || privateCert == "" {
		return "", errors.New("CloudFront configuration is incomplete")
	}
	privateKey, err := getSigner(privateCert)
	if err != nil {
		return "", fmt.Errorf("error parsing private key: %w", err)
	}
	resource := fmt.Sprintf("%s/%s/%s/%s/%s", c.Domain, channel, runtimeVersion, updateId, asset)
	policy := sign.NewCannedPolicy(resource, time.Now().Add(10*time.Minute))
	signer := sign.NewURLSigner(c.KeyPairID, privateKey)
	return signer.SignWithPolicy(resource, policy)
}
