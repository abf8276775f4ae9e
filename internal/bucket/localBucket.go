package bucket

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"apphost-ota/internal/types"

	"github.com/klauspost/compress/flate"
)

type LocalBucket struct {
	BasePath string
}

const timestampFormat = "2006-01-02T15:04:05.000Z"

func (b *LocalBucket) GetChannels() ([]string, error) {
	if b.BasePath == "" {
		return nil, errors.New("BasePath not set")
	}
	entries, err := os.ReadDir(b.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var channels []string
	for _, entry := range entries {
		if entry.IsDir() {
			channels = append(channels, entry.Name())
		}
	}
	return channels, nil
}

func (b *LocalBucket) GetRuntimeVersions(channel string) ([]RuntimeVersionWithStats, error) {
	if b.BasePath == "" {
		return nil, errors.New("BasePath not set")
	}
	channelPath := filepath.Join(b.BasePath, channel)
	entries, err := os.ReadDir(channelPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []RuntimeVersionWithStats{}, nil
		}
		return nil, err
	}
	var stats []RuntimeVersionWithStats
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		updates, err := b.GetUpdates(channel, entry.Name())
		if err != nil || len(updates) == 0 {
			continue
		}
		oldest, newest := updates[0], updates[0]
		for _, u := range updates {
			if u.CreatedAt < oldest.CreatedAt {
				oldest = u
			}
			if u.CreatedAt > newest.CreatedAt {
				newest = u
			}
		}
		stats = append(stats, RuntimeVersionWithStats{
			RuntimeVersion:  entry.Name(),
			CreatedAt:       time.Unix(int64(oldest.CreatedAt/time.Second), 0).UTC().Format(timestampFormat),
			LastUpdatedAt:   time.Unix(int64(newest.CreatedAt/time.Second), 0).UTC().Format(timestampFormat),
			NumberOfUpdates: len(updates),
		})
	}
	return stats, nil
}

func (b *LocalBucket) GetUpdates(channel string, runtimeVersion string) ([]types.Update, error) {
	if b.BasePath == "" {
		return nil, errors.New("BasePath not set")
	}
	dirPath := filepath.Join(b.BasePath, channel, runtimeVersion)
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return []types.Update{}, nil
	}
	var updates []types.Update
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		timestamp, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil {
			continue
		}
		updates = append(updates, types.Update{
			Channel:        channel,
			RuntimeVersion: runtimeVersion,
			UpdateId:       strconv.FormatInt(timestamp, 10),
			CreatedAt:      time.Duration(timestamp) * time.Second,
		})
	}
	return updates, nil
}

func (b *LocalBucket) GetFile(update types.Update, assetPath string) (types.BucketFile, error) {
	if b.BasePath == "" {
		return types.BucketFile{}, errors.New("BasePath not set")
	}
	filePath := filepath.Join(b.BasePath, update.Channel, update.RuntimeVersion, update.UpdateId, assetPath)
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return types.BucketFile{}, fmt.Errorf("%s: %w", assetPath, ErrNotFound)
		}
		return types.BucketFile{}, err
	}
	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return types.BucketFile{}, err
	}
	return types.BucketFile{
		Reader:    file,
		CreatedAt: fileInfo.ModTime(),
	}, nil
}

// IngestUpdate extracts an uploaded zip archive into a fresh update
// directory. An existing directory with the same timestamp is replaced
// wholesale, and a failed extraction removes the partial directory so no
// half-written bundle is ever resolvable.
func (b *LocalBucket) IngestUpdate(channel string, runtimeVersion string, updateId string, archive *zip.Reader) error {
	if b.BasePath == "" {
		return errors.New("BasePath not set")
	}
	dirPath := filepath.Join(b.BasePath, channel, runtimeVersion, updateId)
	if _, err := os.Stat(dirPath); err == nil {
		if err := os.RemoveAll(dirPath); err != nil {
			return fmt.Errorf("error replacing existing update directory: %w", err)
		}
	}
	if err := os.MkdirAll(dirPath, os.ModePerm); err != nil {
		return err
	}
	archive.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
	if err := extractArchive(archive, dirPath); err != nil {
		_ = os.RemoveAll(dirPath)
		return err
	}
	return nil
}

func extractArchive(archive *zip.Reader, dirPath string) error {
	for _, entry := range archive.File {
		targetPath, err := sanitizeArchivePath(dirPath, entry.Name)
		if err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, os.ModePerm); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(targetPath), os.ModePerm); err != nil {
			return err
		}
		src, err := entry.Open()
		if err != nil {
			return fmt.Errorf("error opening archive entry %s: %w", entry.Name, err)
		}
		dst, err := os.Create(targetPath)
		if err != nil {
			src.Close()
			return err
		}
		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			return fmt.Errorf("error extracting %s: %w", entry.Name, err)
		}
	}
	return nil
}

// sanitizeArchivePath rejects entries that would escape the target
// directory (zip slip).
func sanitizeArchivePath(dirPath, name string) (string, error) {
	targetPath := filepath.Join(dirPath, name)
	if !strings.HasPrefix(targetPath, filepath.Clean(dirPath)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal archive path: %s", name)
	}
	return targetPath, nil
}

func (b *LocalBucket) DeleteUpdateFolder(channel string, runtimeVersion string, updateId string) error {
	if b.BasePath == "" {
		return errors.New("BasePath not set")
	}
	dirPath := filepath.Join(b.BasePath, channel, runtimeVersion, updateId)
	return os.RemoveAll(dirPath)
}
