package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest    = errors.New("invalid processing request")
	ErrInvalidURL        = errors.New("invalid image url")
	ErrInvalidPosition   = errors.New("invalid car position")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrCompositeNotFound = errors.New("composite not found")
	ErrImageTooLarge     = errors.New("image exceeds maximum allowed size")
	ErrUnexpectedStatus  = errors.New("unexpected response status")
	ErrDimensionMismatch = errors.New("foreground and background dimensions differ")
	ErrQueueFailed       = errors.New("queue operation failed")
	ErrObjectNotFound    = errors.New("object not found")
)

// FetchError reports a failure to load one of the input images.
type FetchError struct {
	URL    string
	Status int
	Cause  error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to fetch image from %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("failed to fetch image from %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	if e.Status != 0 {
		return ErrUnexpectedStatus
	}
	return e.Cause
}

type RemovalErrorKind string

const (
	RemovalStatus          RemovalErrorKind = "status"
	RemovalTransport       RemovalErrorKind = "transport"
	RemovalMalformed       RemovalErrorKind = "malformed-response"
	RemovalInvalidEncoding RemovalErrorKind = "invalid-encoding"
	RemovalRejected        RemovalErrorKind = "rejected"
)

// RemovalError reports a failure of the background-removal service call.
type RemovalError struct {
	Kind    RemovalErrorKind
	Status  int
	Message string
	Cause   error
}

func (e *RemovalError) Error() string {
	msg := "background removal failed: " + string(e.Kind)
	switch {
	case e.Kind == RemovalStatus:
		msg = fmt.Sprintf("%s %d", msg, e.Status)
	case e.Message != "":
		msg = msg + ": " + e.Message
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *RemovalError) Unwrap() error {
	return e.Cause
}

type ImageErrorKind string

const (
	ImageUndecodable ImageErrorKind = "undecodable"
	ImageEmpty       ImageErrorKind = "empty"
	ImageResize      ImageErrorKind = "resize"
	ImageEncode      ImageErrorKind = "encode"
)

// ImageSide names which input of the compositor an ImageError refers to.
type ImageSide string

const (
	SideForeground ImageSide = "foreground"
	SideBackground ImageSide = "background"
	SideComposite  ImageSide = "composite"
)

// ImageError reports a decode, resize or encode failure in the compositor.
type ImageError struct {
	Kind  ImageErrorKind
	Which ImageSide
	Cause error
}

func (e *ImageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s image %s: %v", e.Which, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s image %s", e.Which, e.Kind)
}

func (e *ImageError) Unwrap() error {
	return e.Cause
}

// UploadError reports a storage-side failure while persisting a composite.
type UploadError struct {
	Bucket string
	Key    string
	Cause  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s/%s: %v", e.Bucket, e.Key, e.Cause)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// Stage returns the pipeline stage an error belongs to, or "" when the
// error is not one of the stage errors.
func Stage(err error) string {
	var (
		fetchErr   *FetchError
		removalErr *RemovalError
		imageErr   *ImageError
		uploadErr  *UploadError
	)
	switch {
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &removalErr):
		return "removal"
	case errors.As(err, &imageErr):
		return "composite"
	case errors.As(err, &uploadErr):
		return "upload"
	}
	return ""
}
