package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/mvtypes-go/internal/analysis/behavior"
	"github.com/jengzang/mvtypes-go/internal/middleware"
	"github.com/jengzang/mvtypes-go/internal/service"
	"github.com/jengzang/mvtypes-go/internal/spatial"
	"github.com/jengzang/mvtypes-go/internal/tabular"
	"github.com/jengzang/mvtypes-go/pkg/response"
)

// ClassifyParams are the per-request overrides of the pipeline settings
type ClassifyParams struct {
	Threshold   *float64 `form:"threshold"`
	InEPSG      *int     `form:"inepsg"`
	OutEPSG     *int     `form:"outepsg"`
	ClassifyNum *int     `form:"classify_num"`
	Format      string   `form:"format"`
}

// ClassifyHandler handles HTTP requests for trace classification
type ClassifyHandler struct {
	classifyService *service.ClassifyService
	maxUploadBytes  int64
}

// NewClassifyHandler creates a new classify handler
func NewClassifyHandler(classifyService *service.ClassifyService, maxUploadBytes int64) *ClassifyHandler {
	return &ClassifyHandler{
		classifyService: classifyService,
		maxUploadBytes:  maxUploadBytes,
	}
}

// Classify handles POST /api/v1/classify
//
// The trace is the request body, or the "file" field of a multipart form.
// The response is the run report as JSON, or the annotated table when
// format=csv.
func (h *ClassifyHandler) Classify(c *gin.Context) {
	var params ClassifyParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if params.Format != "" && params.Format != "json" && params.Format != "csv" {
		response.BadRequest(c, "format must be json or csv")
		return
	}

	opts := h.classifyService.Options()
	if params.Threshold != nil {
		opts.Threshold = *params.Threshold
	}
	if params.InEPSG != nil {
		opts.InEPSG = *params.InEPSG
	}
	if params.OutEPSG != nil {
		opts.OutEPSG = *params.OutEPSG
	}
	if params.ClassifyNum != nil {
		opts.ClassifyNum = *params.ClassifyNum
	}
	if err := opts.Validate(); err != nil {
		respondError(c, badRequest(err))
		return
	}

	body, err := upload(c, h.maxUploadBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	defer body.Close()

	trace, err := tabular.Read(body)
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.classifyService.Classify(c.Request.Context(), trace, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header(middleware.RunIDHeader, report.RunID)
	if params.Format != "csv" {
		response.Success(c, report)
		return
	}

	var buf bytes.Buffer
	if err := tabular.Write(&buf, trace); err != nil {
		response.InternalError(c, err.Error())
		return
	}
	c.Header("Content-Disposition", `attachment; filename="mvtypes.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// upload returns the uploaded document: the multipart "file" field when the
// request is a form, the raw body otherwise.
func upload(c *gin.Context, limit int64) (io.ReadCloser, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, badRequest(fmt.Errorf("missing file field: %w", err))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload: %w", err)
		}
		return f, nil
	}
	return c.Request.Body, nil
}

// badRequestError marks an error caused by a malformed request
type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &badRequestError{err: err} }

// respondError maps domain errors to status codes
func respondError(c *gin.Context, err error) {
	var (
		bre  *badRequestError
		ife  *tabular.InputFormatError
		perr *spatial.ProjectionError
		ede  *behavior.EmptyDistributionError
		mbe  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &mbe):
		response.Error(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &bre), errors.As(err, &ife), errors.As(err, &perr):
		response.BadRequest(c, err.Error())
	case errors.As(err, &ede):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}
