package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/domain"
)

type localStorage struct {
	root    string
	bucket  string
	baseURL string
}

func NewLocalStorage(cfg *config.StorageConfig) (domain.StorageService, error) {
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("LocalPath is empty, set storage.local_path in config or env")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	root := filepath.Join(cfg.LocalPath, cfg.Bucket)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bucket directory: %w", err)
	}

	return &localStorage{
		root:    root,
		bucket:  cfg.Bucket,
		baseURL: cfg.PublicBaseURL,
	}, nil
}

func (s *localStorage) Bucket() string {
	return s.bucket
}

func (s *localStorage) PublicURL(key string) string {
	return PublicURL(s.baseURL, s.bucket, key)
}

// Save writes through a temp file in the target directory and renames it
// into place. The temp file is removed on every failure path.
func (s *localStorage) Save(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if reader == nil {
		zlog.Logger.Error().Str("key", key).Msg("reader is nil")
		return "", fmt.Errorf("reader is nil")
	}
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to create object directory")
		return "", fmt.Errorf("create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to create temp file")
		return "", fmt.Errorf("create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: reader})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("key", key).Msg("failed to write object")
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if size >= 0 && written != size {
		zlog.Logger.Error().Int64("written", written).Int64("expected", size).Str("key", key).Msg("short write")
		return "", fmt.Errorf("write object %s: wrote %d of %d bytes", key, written, size)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to move object into place")
		return "", fmt.Errorf("rename object %s: %w", key, err)
	}
	committed = true

	zlog.Logger.Info().
		Str("bucket", s.bucket).
		Str("key", key).
		Str("content_type", contentType).
		Int64("bytes", written).
		Msg("object saved")

	return s.PublicURL(key), nil
}

func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	fullPath := filepath.Join(s.root, filepath.FromSlash(key))

	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, key)
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to open object")
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	if stat, err := file.Stat(); err == nil && stat.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, key)
	}
	return file, nil
}

func (s *localStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	fullPath := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			zlog.Logger.Warn().Str("path", fullPath).Msg("object not found, skipping delete")
			return nil
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to delete object")
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	zlog.Logger.Info().Str("key", key).Msg("object deleted")
	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
