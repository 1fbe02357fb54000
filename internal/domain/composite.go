package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type CarPosition string

const (
	PositionFront         CarPosition = "front"
	PositionRear          CarPosition = "rear"
	PositionSideLeft      CarPosition = "side_left"
	PositionSideRight     CarPosition = "side_right"
	PositionFrontLeft     CarPosition = "front_left"
	PositionFrontRight    CarPosition = "front_right"
	PositionRearLeft      CarPosition = "rear_left"
	PositionRearRight     CarPosition = "rear_right"
	PositionInteriorFront CarPosition = "interior_front"
	PositionInteriorRear  CarPosition = "interior_rear"
	PositionEngine        CarPosition = "engine"
	PositionTrunk         CarPosition = "trunk"
	PositionWheel         CarPosition = "wheel"
	PositionRoof          CarPosition = "roof"
)

var carPositions = map[CarPosition]struct{}{
	PositionFront: {}, PositionRear: {}, PositionSideLeft: {}, PositionSideRight: {},
	PositionFrontLeft: {}, PositionFrontRight: {}, PositionRearLeft: {}, PositionRearRight: {},
	PositionInteriorFront: {}, PositionInteriorRear: {}, PositionEngine: {}, PositionTrunk: {},
	PositionWheel: {}, PositionRoof: {},
}

func (p CarPosition) IsValid() bool {
	_, ok := carPositions[p]
	return ok
}

// ProcessingRequest carries the two source URLs of one composite. Position
// is informational only.
type ProcessingRequest struct {
	ImageURL      string
	BackgroundURL string
	Position      CarPosition
}

func (r ProcessingRequest) Validate() error {
	if err := ValidateImageURL(r.ImageURL); err != nil {
		return fmt.Errorf("%w: image_url: %w", ErrInvalidRequest, err)
	}
	if err := ValidateImageURL(r.BackgroundURL); err != nil {
		return fmt.Errorf("%w: background_url: %w", ErrInvalidRequest, err)
	}
	if r.Position != "" && !r.Position.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidRequest, ErrInvalidPosition, r.Position)
	}
	return nil
}

// ValidateImageURL accepts absolute http and https URLs only.
func ValidateImageURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// CompositeResult is the encoded output of the compositor.
type CompositeResult struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// UploadRecord describes where a composite was persisted.
type UploadRecord struct {
	Bucket    string `json:"bucket"`
	ObjectKey string `json:"object_key"`
	PublicURL string `json:"public_url"`
}

type CompositeStatus string

const (
	StatusPending    CompositeStatus = "pending"
	StatusProcessing CompositeStatus = "processing"
	StatusCompleted  CompositeStatus = "completed"
	StatusFailed     CompositeStatus = "failed"
)

// Composite is the persisted record of one authenticated composite, either
// produced synchronously or through the job queue.
type Composite struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	ImageURL      string          `json:"image_url"`
	BackgroundURL string          `json:"background_url"`
	Position      CarPosition     `json:"position,omitempty"`
	Status        CompositeStatus `json:"status"`
	Upload        UploadRecord    `json:"upload"`
	Width         int             `json:"width,omitempty"`
	Height        int             `json:"height,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

func (c *Composite) Request() ProcessingRequest {
	return ProcessingRequest{
		ImageURL:      c.ImageURL,
		BackgroundURL: c.BackgroundURL,
		Position:      c.Position,
	}
}

func (c *Composite) IsCompleted() bool {
	return c.Status == StatusCompleted
}

func (c *Composite) CanBeProcessed() bool {
	return c.Status == StatusPending || c.Status == StatusFailed
}

// IsStale reports whether a processing job has gone untouched for longer
// than after. Its worker is assumed gone and the job may be picked up again.
func (c *Composite) IsStale(now time.Time, after time.Duration) bool {
	return c.Status == StatusProcessing && after > 0 && now.Sub(c.UpdatedAt) > after
}

func (c *Composite) MarkAsProcessing() {
	c.Status = StatusProcessing
	c.UpdatedAt = time.Now()
}

func (c *Composite) MarkAsCompleted(upload UploadRecord, width, height int) {
	c.Status = StatusCompleted
	c.Upload = upload
	c.Width = width
	c.Height = height
	now := time.Now()
	c.CompletedAt = &now
	c.UpdatedAt = now
	c.ErrorMessage = ""
}

func (c *Composite) MarkAsFailed(errMsg string) {
	c.Status = StatusFailed
	c.ErrorMessage = errMsg
	c.UpdatedAt = time.Now()
}
