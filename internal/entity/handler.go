package entity

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/scamshield/internal/intel"
	"github.com/richxcame/scamshield/pkg/common"
	"github.com/richxcame/scamshield/pkg/logger"
	"github.com/richxcame/scamshield/pkg/middleware"
	"go.uber.org/zap"
)

// ReportSubmitter is the part of Service the HTTP layer needs
type ReportSubmitter interface {
	SubmitReport(ctx context.Context, req *SubmitReportRequest) (*intel.Report, error)
}

// Handler serves community report submission
type Handler struct {
	service ReportSubmitter
}

// NewHandler creates a new report handler
func NewHandler(service ReportSubmitter) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the report routes on rg
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reports", h.SubmitReport)
}

// SubmitReport handles POST /reports
func (h *Handler) SubmitReport(c *gin.Context) {
	var req SubmitReportRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	report, err := h.service.SubmitReport(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidEntity) || errors.Is(err, ErrEmptyReport) {
			common.AppErrorResponse(c, common.NewBadRequestError(err.Error(), err))
			return
		}
		logger.WithContext(c.Request.Context()).Error("failed to submit report", zap.Error(err))
		common.AppErrorResponse(c, common.NewInternalServerError("failed to submit report", err))
		return
	}

	common.SuccessResponseWithStatus(c, http.StatusCreated, report)
}
