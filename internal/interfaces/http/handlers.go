package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/fraudguard/internal/application/service"
	"github.com/garyjia/fraudguard/internal/domain/entity"
)

// UploadField is the repeated multipart field carrying claim documents
const UploadField = "files"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	uploads       *service.UploadOrchestrator
	inspector     DocumentInspector
	claims        *service.ClaimsService
	analytics     *service.AnalyticsService
	maxUploadSize int64
	batches       *batchRunner
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadSize int64, logger Logger) *Handlers {
	return &Handlers{
		uploads:       services.Uploads,
		inspector:     services.Inspector,
		claims:        services.Claims,
		analytics:     services.Analytics,
		maxUploadSize: maxUploadSize,
		batches:       newBatchRunner(),
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// BatchResponse is returned when a batch is accepted
type BatchResponse struct {
	Batch *entity.Batch          `json:"batch"`
	Files []*entity.UploadedFile `json:"files"`
}

// BoardResponse is a snapshot of the upload board
type BoardResponse struct {
	Files      []*entity.UploadedFile `json:"files"`
	Progress   float64                `json:"progress"`
	Processing bool                   `json:"processing"`
}

// ClaimsResponse is one page of the claims table
type ClaimsResponse struct {
	Claims []*entity.Claim    `json:"claims"`
	Total  int                `json:"total"`
	Filter entity.ClaimFilter `json:"filter"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// SubmitUploads handles POST /api/uploads. The batch keeps running after the response.
func (h *Handlers) SubmitUploads(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			fail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit))
			return
		}
		h.logger.Error("Invalid upload form", "error", err)
		fail(c, http.StatusBadRequest, "invalid multipart form")
		return
	}

	headers := form.File[UploadField]
	if len(headers) == 0 {
		fail(c, http.StatusBadRequest, "no files uploaded")
		return
	}

	documents := make([]entity.Document, 0, len(headers))
	for _, fh := range headers {
		content, err := readUpload(fh)
		if err != nil {
			h.logger.Error("Failed to read uploaded file", "file_name", fh.Filename, "error", err)
			fail(c, http.StatusBadRequest, "failed to read "+fh.Filename)
			return
		}
		documents = append(documents, h.inspector.Inspect(fh.Filename, content))
	}

	sub, err := h.uploads.Begin(documents)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedMediaType) {
			fail(c, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		h.logger.Error("Failed to accept upload batch", "error", err)
		fail(c, http.StatusInternalServerError, "failed to accept upload")
		return
	}

	h.batches.Go(func(ctx context.Context) {
		h.uploads.Run(ctx, sub)
	})

	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data: BatchResponse{
			Batch: sub.Batch,
			Files: sub.Files,
		},
	})
}

// WaitForBatches blocks until every batch started through the API has finished or ctx is done
func (h *Handlers) WaitForBatches(ctx context.Context) error {
	return h.batches.Wait(ctx)
}

// CancelBatches cancels every running batch; their remaining files fail as unreachable
func (h *Handlers) CancelBatches() {
	h.batches.Cancel()
}

// ListUploads handles GET /api/uploads
func (h *Handlers) ListUploads(c *gin.Context) {
	board := h.uploads.Board()
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: BoardResponse{
			Files:      board.Files(),
			Progress:   board.Progress(),
			Processing: board.Processing(),
		},
	})
}

// GetUpload handles GET /api/uploads/:id
func (h *Handlers) GetUpload(c *gin.Context) {
	file, err := h.uploads.Board().File(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "upload not found")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: file})
}

// GetBatch handles GET /api/uploads/batches/:id
func (h *Handlers) GetBatch(c *gin.Context) {
	progress, ok := h.uploads.Board().BatchProgress(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "batch not found")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: progress})
}

// ListClaims handles GET /api/claims
func (h *Handlers) ListClaims(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	claims, err := h.claims.Search(c.Request.Context(), filter)
	if err != nil {
		h.claimsError(c, err, "failed to retrieve claims")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: ClaimsResponse{
			Claims: claims,
			Total:  len(claims),
			Filter: filter.Normalized(),
		},
	})
}

// ListLocations handles GET /api/claims/locations
func (h *Handlers) ListLocations(c *gin.Context) {
	locations, err := h.claims.Locations(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list locations", "error", err)
		fail(c, http.StatusInternalServerError, "failed to retrieve locations")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: locations})
}

// GetClaim handles GET /api/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	claim, err := h.claims.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.claimsError(c, err, "failed to retrieve claim")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// ExportClaims handles GET /api/claims/export
func (h *Handlers) ExportClaims(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.claims.Export(c.Request.Context(), filter, &buf); err != nil {
		h.claimsError(c, err, "failed to export claims")
		return
	}

	filename := fmt.Sprintf("claims-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetAnalytics handles GET /api/analytics
func (h *Handlers) GetAnalytics(c *gin.Context) {
	summary, err := h.analytics.Summary(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to build analytics", "error", err)
		fail(c, http.StatusInternalServerError, "failed to build analytics")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

func (h *Handlers) claimsError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, service.ErrClaimNotFound):
		fail(c, http.StatusNotFound, "claim not found")
	case errors.Is(err, service.ErrInvalidFilter):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(message, "error", err)
		fail(c, http.StatusInternalServerError, message)
	}
}

func bindFilter(c *gin.Context) (entity.ClaimFilter, bool) {
	var filter entity.ClaimFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters")
		return filter, false
	}
	return filter, true
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Success: false,
		Error:   message,
	})
}
