package http

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/backdrop/internal/domain"
	"github.com/yokitheyo/backdrop/internal/dto"
)

// StorageHandler serves objects of the local backend under the same path
// layout as the public object URLs.
type StorageHandler struct {
	storage domain.StorageService
}

func NewStorageHandler(storage domain.StorageService) *StorageHandler {
	return &StorageHandler{storage: storage}
}

func (h *StorageHandler) RegisterRoutes(engine *ginext.Engine) {
	engine.GET("/storage/v1/object/public/:bucket/*key", h.GetObject)
}

// GetObject GET /storage/v1/object/public/:bucket/*key
func (h *StorageHandler) GetObject(c *ginext.Context) {
	bucket := c.Param("bucket")
	key := strings.TrimPrefix(c.Param("key"), "/")
	if bucket != h.storage.Bucket() || key == "" {
		notFound(c)
		return
	}

	obj, err := h.storage.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			notFound(c)
			return
		}
		zlog.Logger.Warn().Err(err).Str("key", key).Msg("failed to open object")
		notFound(c)
		return
	}
	defer obj.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.DataFromReader(http.StatusOK, -1, contentType, obj, nil)
}

func notFound(c *ginext.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, dto.ErrorResponse{
		Error:   "not_found",
		Message: "Object not found",
		Code:    http.StatusNotFound,
	})
}
