package domain

import (
	"context"
	"io"
)

// ImageFetcher loads raw bytes from an http(s) URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// BackgroundRemover returns the alpha-capable cut-out of an image.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, image []byte) ([]byte, error)
}

// Compositor places a cut-out over a background and encodes the result.
type Compositor interface {
	Composite(ctx context.Context, foreground, background []byte) (*CompositeResult, error)
}

// TokenVerifier validates a bearer credential and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type PipelineService interface {
	Process(ctx context.Context, req ProcessingRequest) (*CompositeResult, error)
}

type CompositeService interface {
	ProcessAndUpload(ctx context.Context, userID string, req ProcessingRequest) (*Composite, error)
	SubmitJob(ctx context.Context, userID string, req ProcessingRequest) (*Composite, error)
	GetComposite(ctx context.Context, userID, id string) (*Composite, error)
	ListComposites(ctx context.Context, userID string, limit, offset int) ([]*Composite, error)
}

type JobProcessor interface {
	ProcessJob(ctx context.Context, compositeID string) error
}

type StorageService interface {
	Save(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	Bucket() string
}

type QueueService interface {
	PublishCompositeTask(ctx context.Context, compositeID string) error
	Close() error
}
