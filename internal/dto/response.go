package dto

import (
	"time"

	"github.com/yokitheyo/backdrop/internal/domain"
)

type ProcessedImageResponse struct {
	ProcessedImage string `json:"processed_image"`
}

type ProcessedImageURLResponse struct {
	ProcessedImageURL string `json:"processed_image_url"`
}

type CompositeResponse struct {
	ID                string     `json:"id"`
	ImageURL          string     `json:"image_url"`
	BackgroundURL     string     `json:"background_url"`
	Position          string     `json:"position,omitempty"`
	Status            string     `json:"status"`
	ProcessedImageURL string     `json:"processed_image_url,omitempty"`
	Width             int        `json:"width,omitempty"`
	Height            int        `json:"height,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

type CompositeListResponse struct {
	Composites []*CompositeResponse `json:"composites"`
	Total      int                  `json:"total"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func MapCompositeToResponse(c *domain.Composite) *CompositeResponse {
	if c == nil {
		return nil
	}

	resp := &CompositeResponse{
		ID:            c.ID,
		ImageURL:      c.ImageURL,
		BackgroundURL: c.BackgroundURL,
		Position:      string(c.Position),
		Status:        string(c.Status),
		Width:         c.Width,
		Height:        c.Height,
		ErrorMessage:  c.ErrorMessage,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		CompletedAt:   c.CompletedAt,
	}

	if c.IsCompleted() {
		resp.ProcessedImageURL = c.Upload.PublicURL
	}

	return resp
}

func MapCompositesToResponse(composites []*domain.Composite, limit, offset int) *CompositeListResponse {
	responses := make([]*CompositeResponse, 0, len(composites))
	for _, c := range composites {
		responses = append(responses, MapCompositeToResponse(c))
	}

	return &CompositeListResponse{
		Composites: responses,
		Total:      len(responses),
		Limit:      limit,
		Offset:     offset,
	}
}
