package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/mvtypes-go/internal/service"
)

// ConvertHandler handles HTTP requests for GPX conversion
type ConvertHandler struct {
	convertService *service.ConvertService
	maxUploadBytes int64
}

// NewConvertHandler creates a new convert handler
func NewConvertHandler(convertService *service.ConvertService, maxUploadBytes int64) *ConvertHandler {
	return &ConvertHandler{
		convertService: convertService,
		maxUploadBytes: maxUploadBytes,
	}
}

// ConvertGPX handles POST /api/v1/convert/gpx
func (h *ConvertHandler) ConvertGPX(c *gin.Context) {
	body, err := upload(c, h.maxUploadBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	defer body.Close()

	var buf bytes.Buffer
	if _, err := h.convertService.ConvertStream(body, &buf); err != nil {
		respondError(c, badRequest(err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="track.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
