package services

import (
	"context"
	"fmt"

	appconfig "apphost-ota/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// NewS3Client builds an S3 client from the injected configuration. A
// non-AWS base endpoint (e.g. a GCS or MinIO interop endpoint) switches the
// client to path-style addressing.
func NewS3Client(cfg appconfig.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS configuration: %w", err)
	}
	if cfg.AWSBaseEndpoint != "" {
		return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSBaseEndpoint)
			o.UsePathStyle = true
		}), nil
	}
	return s3.NewFromConfig(awsCfg), nil
}

// FetchSecret reads a secret string from AWS Secrets Manager.
func FetchSecret(ctx context.Context, cfg appconfig.Config, secretID string) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return "", fmt.Errorf("error loading AWS configuration: %w", err)
	}
	client := secretsmanager.NewFromConfig(awsCfg)
	resp, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("error retrieving secret %s: %w", secretID, err)
	}
	if resp.SecretString == nil {
		return "", fmt.Errorf("secret %s has no SecretString", secretID)
	}
	return *resp.SecretString, nil
}
