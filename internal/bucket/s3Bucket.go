package bucket

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"apphost-ota/config"
	"apphost-ota/internal/services"
	"apphost-ota/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Bucket stores bundles as objects under
// <channel>/<runtimeVersion>/<timestamp>/<path> prefixes, mirroring the
// local filesystem layout.
type S3Bucket struct {
	BucketName string
	client     *s3.Client
}

func NewS3Bucket(cfg config.Config) (*S3Bucket, error) {
	if cfg.S3BucketName == "" {
		return nil, errors.New("BucketName not set")
	}
	client, err := services.NewS3Client(cfg)
	if err != nil {
		return nil, err
	}
	return &S3Bucket{BucketName: cfg.S3BucketName, client: client}, nil
}

func (b *S3Bucket) listCommonPrefixes(prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.BucketName),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}
	var prefixes []string
	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.TODO())
		if err != nil {
			return nil, fmt.Errorf("ListObjectsV2 error: %w", err)
		}
		for _, commonPrefix := range page.CommonPrefixes {
			prefixes = append(prefixes, *commonPrefix.Prefix)
		}
	}
	return prefixes, nil
}

func (b *S3Bucket) GetChannels() ([]string, error) {
	prefixes, err := b.listCommonPrefixes("")
	if err != nil {
		return nil, err
	}
	channels := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		channels = append(channels, trimPrefixSlash(p, ""))
	}
	return channels, nil
}

func (b *S3Bucket) GetRuntimeVersions(channel string) ([]RuntimeVersionWithStats, error) {
	prefixes, err := b.listCommonPrefixes(channel + "/")
	if err != nil {
		return nil, err
	}
	var stats []RuntimeVersionWithStats
	for _, p := range prefixes {
		runtimeVersion := trimPrefixSlash(p, channel+"/")
		updates, err := b.GetUpdates(channel, runtimeVersion)
		if err != nil || len(updates) == 0 {
			continue
		}
		sort.Slice(updates, func(i, j int) bool { return updates[i].CreatedAt < updates[j].CreatedAt })
		stats = append(stats, RuntimeVersionWithStats{
			RuntimeVersion:  runtimeVersion,
			CreatedAt:       time.Unix(int64(updates[0].CreatedAt/time.Second), 0).UTC().Format(timestampFormat),
			LastUpdatedAt:   time.Unix(int64(updates[len(updates)-1].CreatedAt/time.Second), 0).UTC().Format(timestampFormat),
			NumberOfUpdates: len(updates),
		})
	}
	return stats, nil
}

func trimPrefixSlash(fullPrefix, parent string) string {
	trimmed := fullPrefix[len(parent):]
	if len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return trimmed
}

func (b *S3Bucket) GetUpdates(channel string, runtimeVersion string) ([]types.Update, error) {
	prefix := channel + "/" + runtimeVersion + "/"
	prefixes, err := b.listCommonPrefixes(prefix)
	if err != nil {
		return nil, err
	}
	var updates []types.Update
	for _, commonPrefix := range prefixes {
		var timestamp int64
		if _, err := fmt.Sscanf(commonPrefix, prefix+"%d/", &timestamp); err == nil {
			updates = append(updates, types.Update{
				Channel:        channel,
				RuntimeVersion: runtimeVersion,
				UpdateId:       strconv.FormatInt(timestamp, 10),
				CreatedAt:      time.Duration(timestamp) * time.Second,
			})
		}
	}
	return updates, nil
}

func (b *S3Bucket) GetFile(update types.Update, assetPath string) (types.BucketFile, error) {
	key := update.Channel + "/" + update.RuntimeVersion + "/" + update.UpdateId + "/" + assetPath
	resp, err := b.client.GetObject(context.TODO(), &s3.GetObjectInput{
		Bucket: aws.String(b.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return types.BucketFile{}, fmt.Errorf("%s: %w", assetPath, ErrNotFound)
		}
		return types.BucketFile{}, fmt.Errorf("GetObject error: %w", err)
	}
	return types.BucketFile{
		Reader:    resp.Body,
		CreatedAt: *resp.LastModified,
	}, nil
}

// IngestUpdate uploads every archive entry under the update prefix. Any
// objects already stored under the prefix are removed first so a same-second
// re-upload replaces the bundle instead of merging into it; a failed upload
// tears the prefix back down.
func (b *S3Bucket) IngestUpdate(channel string, runtimeVersion string, updateId string, archive *zip.Reader) error {
	if err := b.DeleteUpdateFolder(channel, runtimeVersion, updateId); err != nil {
		return err
	}
	prefix := channel + "/" + runtimeVersion + "/" + updateId + "/"
	for _, entry := range archive.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		src, err := entry.Open()
		if err != nil {
			return fmt.Errorf("error opening archive entry %s: %w", entry.Name, err)
		}
		content, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return fmt.Errorf("error reading archive entry %s: %w", entry.Name, err)
		}
		_, err = b.client.PutObject(context.TODO(), &s3.PutObjectInput{
			Bucket: aws.String(b.BucketName),
			Key:    aws.String(prefix + entry.Name),
			Body:   bytes.NewReader(content),
		})
		if err != nil {
			_ = b.DeleteUpdateFolder(channel, runtimeVersion, updateId)
			return fmt.Errorf("PutObject error: %w", err)
		}
	}
	return nil
}

func (b *S3Bucket) DeleteUpdateFolder(channel string, runtimeVersion string, updateId string) error {
	prefix := channel + "/" + runtimeVersion + "/" + updateId + "/"
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.BucketName),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.TODO())
		if err != nil {
			return fmt.Errorf("ListObjectsV2 error: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}
		objects := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
		for _, object := range page.Contents {
			objects = append(objects, s3types.ObjectIdentifier{Key: object.Key})
		}
		_, err = b.client.DeleteObjects(context.TODO(), &s3.DeleteObjectsInput{
			Bucket: aws.String(b.BucketName),
			Delete: &s3types.Delete{Objects: objects},
		})
		if err != nil {
			return fmt.Errorf("DeleteObjects error: %w", err)
		}
	}
	return nil
}
