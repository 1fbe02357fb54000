package http

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/backdrop/internal/domain"
	"github.com/yokitheyo/backdrop/internal/dto"
	"github.com/yokitheyo/backdrop/internal/handler/middleware"
)

const defaultPageSize = 10

type CompositeHandler struct {
	pipeline   domain.PipelineService
	composites domain.CompositeService
}

func NewCompositeHandler(pipeline domain.PipelineService, composites domain.CompositeService) *CompositeHandler {
	return &CompositeHandler{
		pipeline:   pipeline,
		composites: composites,
	}
}

// RegisterRoutes mounts the public route and, behind auth, the user routes.
func (h *CompositeHandler) RegisterRoutes(engine *ginext.Engine, auth ginext.HandlerFunc) {
	engine.POST("/process-image", h.ProcessImage)

	user := engine.Group("", auth)
	user.POST("/user/process-image", h.ProcessImageForUser)
	user.POST("/jobs", h.SubmitJob)
	user.GET("/jobs", h.ListJobs)
	user.GET("/jobs/:id", h.GetJob)
}

// ProcessImage POST /process-image
func (h *CompositeHandler) ProcessImage(c *ginext.Context) {
	req, ok := bindProcessRequest(c)
	if !ok {
		return
	}

	result, err := h.pipeline.Process(c.Request.Context(), req.ToDomain())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ProcessedImageResponse{
		ProcessedImage: base64.StdEncoding.EncodeToString(result.Data),
	})
}

// ProcessImageForUser POST /user/process-image
func (h *CompositeHandler) ProcessImageForUser(c *ginext.Context) {
	req, ok := bindProcessRequest(c)
	if !ok {
		return
	}

	composite, err := h.composites.ProcessAndUpload(c.Request.Context(), middleware.UserID(c), req.ToDomain())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ProcessedImageURLResponse{
		ProcessedImageURL: composite.Upload.PublicURL,
	})
}

// SubmitJob POST /jobs
func (h *CompositeHandler) SubmitJob(c *ginext.Context) {
	req, ok := bindProcessRequest(c)
	if !ok {
		return
	}

	composite, err := h.composites.SubmitJob(c.Request.Context(), middleware.UserID(c), req.ToDomain())
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Location", "/jobs/"+composite.ID)
	c.JSON(http.StatusAccepted, dto.MapCompositeToResponse(composite))
}

// GetJob GET /jobs/:id
func (h *CompositeHandler) GetJob(c *ginext.Context) {
	composite, err := h.composites.GetComposite(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MapCompositeToResponse(composite))
}

// ListJobs GET /jobs
func (h *CompositeHandler) ListJobs(c *ginext.Context) {
	var q dto.ListCompositesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	composites, err := h.composites.ListComposites(c.Request.Context(), middleware.UserID(c), q.Limit, q.Offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MapCompositesToResponse(composites, q.Limit, q.Offset))
}

func bindProcessRequest(c *ginext.Context) (*dto.ProcessImageRequest, bool) {
	var req dto.ProcessImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("invalid process-image payload")
		writeError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return nil, false
	}
	return &req, true
}

// writeError maps domain and stage errors to a status and error code. The
// message is the error's own description.
func writeError(c *ginext.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError && code == "internal_error" {
		zlog.Logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("unhandled error")
		msg = "An internal error occurred"
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Bearer realm="backdrop"`)
	}
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   code,
		Message: msg,
		Code:    status,
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrCompositeNotFound), errors.Is(err, domain.ErrObjectNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrQueueFailed):
		return http.StatusServiceUnavailable, "queue_unavailable"
	case errors.Is(err, context.Canceled):
		return 499, "request_canceled"
	}

	switch domain.Stage(err) {
	case "fetch":
		return http.StatusInternalServerError, "fetch_failed"
	case "removal":
		return http.StatusInternalServerError, "removal_failed"
	case "composite":
		return http.StatusInternalServerError, "image_failed"
	case "upload":
		return http.StatusInternalServerError, "upload_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}
