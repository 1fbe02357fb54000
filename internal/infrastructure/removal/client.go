package removal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/domain"
)

const (
	imageField    = "image"
	imageFilename = "image"
	// Cap on the JSON envelope; results carry a base64 PNG.
	maxResponseBytes = 64 * 1024 * 1024
)

// Client talks to the car background-removal API selected by the static
// endpoint profile. It does not retry and does not cache.
type Client struct {
	client  *http.Client
	profile config.RemovalProfile
	timeout time.Duration
}

func NewClient(profile config.RemovalProfile, timeout time.Duration, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	zlog.Logger.Info().
		Str("mode", string(profile.Mode)).
		Str("url", profile.URL).
		Dur("timeout", timeout).
		Msg("Background removal client initialized")
	return &Client{client: client, profile: profile, timeout: timeout}
}

type envelope struct {
	Results []result `json:"results"`
}

type result struct {
	Status   *resultStatus `json:"status"`
	Entities []entity      `json:"entities"`
}

type resultStatus struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type entity struct {
	Kind  string  `json:"kind"`
	Image *string `json:"image"`
}

func (c *Client) RemoveBackground(ctx context.Context, image []byte) ([]byte, error) {
	body, contentType, err := multipartBody(image)
	if err != nil {
		return nil, &domain.RemovalError{Kind: domain.RemovalTransport, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.profile.URL, body)
	if err != nil {
		return nil, &domain.RemovalError{Kind: domain.RemovalTransport, Cause: err}
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range c.profile.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("mode", string(c.profile.Mode)).Msg("removal request failed")
		return nil, &domain.RemovalError{Kind: domain.RemovalTransport, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zlog.Logger.Error().
			Str("mode", string(c.profile.Mode)).
			Int("status", resp.StatusCode).
			Msg("removal API returned non-2xx status")
		return nil, &domain.RemovalError{Kind: domain.RemovalStatus, Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.RemovalError{Kind: domain.RemovalTransport, Cause: fmt.Errorf("read body: %w", err)}
	}

	encoded, err := extractImage(raw)
	if err != nil {
		zlog.Logger.Error().Err(err).Int("bytes", len(raw)).Msg("unexpected removal API response")
		return nil, err
	}

	cutout, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, &domain.RemovalError{Kind: domain.RemovalInvalidEncoding, Cause: err}
	}

	zlog.Logger.Info().
		Str("mode", string(c.profile.Mode)).
		Int("input_bytes", len(image)).
		Int("cutout_bytes", len(cutout)).
		Dur("duration", time.Since(start)).
		Msg("background removed")

	return cutout, nil
}

// extractImage returns results[0].entities[0].image from the envelope.
func extractImage(raw []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", &domain.RemovalError{Kind: domain.RemovalMalformed, Message: "response is not valid json", Cause: err}
	}
	if len(env.Results) == 0 {
		return "", &domain.RemovalError{Kind: domain.RemovalMalformed, Message: "results array is empty"}
	}
	first := env.Results[0]
	if first.Status != nil && first.Status.Code == "failure" {
		return "", &domain.RemovalError{Kind: domain.RemovalRejected, Message: first.Status.Message}
	}
	if len(first.Entities) == 0 {
		return "", &domain.RemovalError{Kind: domain.RemovalMalformed, Message: "entities array is empty"}
	}
	if first.Entities[0].Image == nil {
		return "", &domain.RemovalError{Kind: domain.RemovalMalformed, Message: "entity image is missing"}
	}
	return *first.Entities[0].Image, nil
}

func multipartBody(image []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(imageField, imageFilename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
