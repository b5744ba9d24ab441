package analyses

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"labelscan-backend/internal/shared/server/respond"
	"labelscan-backend/internal/shared/storage/object"
)

const defaultMaxUploadBytes = 10 << 20

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc            *Service
	Store          object.ImageStore
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, store object.ImageStore, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, Store: store, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.createAnalysis)
	rg.POST("/analyses/:id/analyze", h.runAnalysis)
	rg.POST("/analyses/:id/confirm", h.confirmText)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
}

func (h *Handler) createAnalysis(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "image exceeds the upload size limit", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "image file is required", nil)
		return
	}
	defer file.Close()

	key, _, _, err := h.Store.Save(c.Request.Context(), header.Filename, file)
	if err != nil {
		if strings.Contains(err.Error(), "unsupported image type") {
			respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "only JPEG and PNG images are accepted", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store image", nil)
		return
	}

	analysis, err := h.Svc.Create(c.Request.Context(), key, c.PostForm("preference"))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create analysis", nil)
		return
	}
	c.Set("analysisId", analysis.ID)

	respond.Created(c, gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
		"preference": analysis.Preference,
	})
}

func (h *Handler) runAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}
	c.Set("analysisId", analysisID)

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	analysis, err := h.Svc.Analyze(ctx, analysisID)
	if err != nil {
		h.respondPipelineError(c, err)
		return
	}

	respond.JSON(c, http.StatusOK, analysisBody(analysis))
}

func (h *Handler) confirmText(c *gin.Context) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}
	c.Set("analysisId", analysisID)

	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "request body must be JSON with a text field", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	analysis, err := h.Svc.Confirm(ctx, analysisID, body.Text)
	if err != nil {
		h.respondPipelineError(c, err)
		return
	}

	respond.JSON(c, http.StatusOK, analysisBody(analysis))
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, analysisBody(analysis))
}

func (h *Handler) listAnalyses(c *gin.Context) {
	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	analyses, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		item := gin.H{
			"analysisId": a.ID,
			"status":     a.Status,
			"preference": a.Preference,
			"createdAt":  a.CreatedAt,
		}
		if a.Status == StatusCompleted && a.Result != nil {
			item["healthScore"] = a.Result.HealthScore
			item["summary"] = a.Result.Summary
		}
		resp = append(resp, item)
	}

	respond.JSON(c, http.StatusOK, resp)
}

// respondPipelineError maps service errors to HTTP statuses. Pipeline stage
// failures are 422 because the submission itself was accepted; only lookup,
// input and sequencing errors map elsewhere.
func (h *Handler) respondPipelineError(c *gin.Context, err error) {
	var transitionErr *TransitionError
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
	case errors.Is(err, ErrEmptyText):
		respond.Error(c, http.StatusBadRequest, "validation_error", "text must not be empty", nil)
	case errors.As(err, &transitionErr):
		respond.Error(c, http.StatusConflict, "conflict", transitionErr.Error(), nil)
	default:
		code, _ := classifyFailure(err)
		respond.Error(c, http.StatusUnprocessableEntity, code, userFacingMessage(err), nil)
	}
}

func analysisBody(a Analysis) gin.H {
	body := gin.H{
		"analysisId": a.ID,
		"status":     a.Status,
		"preference": a.Preference,
		"createdAt":  a.CreatedAt,
		"updatedAt":  a.UpdatedAt,
	}
	if a.OCRText != nil {
		body["ocrText"] = *a.OCRText
	}
	if a.ConfirmedText != nil {
		body["confirmedText"] = *a.ConfirmedText
	}
	if a.Status == StatusCompleted && a.Result != nil {
		body["result"] = a.Result
	}
	if a.Status == StatusFailed && a.ErrorMessage != nil {
		body["errorMessage"] = *a.ErrorMessage
	}
	return body
}
