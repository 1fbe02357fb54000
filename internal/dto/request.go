package dto

import "github.com/yokitheyo/backdrop/internal/domain"

type ProcessImageRequest struct {
	ImageURL      string `json:"image_url" binding:"required"`
	BackgroundURL string `json:"background_url" binding:"required"`
	Position      string `json:"position" binding:"omitempty,oneof=front rear side_left side_right front_left front_right rear_left rear_right interior_front interior_rear engine trunk wheel roof"`
}

func (r *ProcessImageRequest) ToDomain() domain.ProcessingRequest {
	return domain.ProcessingRequest{
		ImageURL:      r.ImageURL,
		BackgroundURL: r.BackgroundURL,
		Position:      domain.CarPosition(r.Position),
	}
}

type ListCompositesQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// CompositeTask is the Kafka payload of an async composite job.
type CompositeTask struct {
	CompositeID string `json:"composite_id"`
}
