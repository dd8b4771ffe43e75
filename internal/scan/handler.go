package scan

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/scamshield/internal/blocklist"
	"github.com/richxcame/scamshield/internal/fingerprint"
	"github.com/richxcame/scamshield/internal/intel"
	"github.com/richxcame/scamshield/internal/trust"
	"github.com/richxcame/scamshield/pkg/common"
	"github.com/richxcame/scamshield/pkg/logger"
	"github.com/richxcame/scamshield/pkg/middleware"
	"github.com/richxcame/scamshield/pkg/pagination"
	"go.uber.org/zap"
)

// Scorer is the part of Engine the HTTP layer needs
type Scorer interface {
	Score(ctx context.Context, req *Request) (*Result, error)
	Fingerprint(ctx context.Context, req *FingerprintRequest) (fingerprint.Result, error)
	TrustScore(req *TrustScoreRequest) trust.Result
	CheckBlocklist(domain string) (blocklist.Result, error)
	Campaigns() []intel.Campaign
}

// Handler serves the scoring API
type Handler struct {
	engine Scorer
}

// NewHandler creates a new scan handler
func NewHandler(engine Scorer) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes mounts the scoring routes on rg
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scan", h.Scan)
	rg.POST("/fingerprint", h.Fingerprint)
	rg.POST("/trust-score", h.TrustScore)
	rg.GET("/blocklist/check", h.CheckBlocklist)
	rg.GET("/campaigns", h.ListCampaigns)
}

// Scan handles POST /scan
func (h *Handler) Scan(c *gin.Context) {
	var req Request
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	res, err := h.engine.Score(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err, "failed to score input")
		return
	}

	common.SuccessResponse(c, res)
}

// Fingerprint handles POST /fingerprint
func (h *Handler) Fingerprint(c *gin.Context) {
	var req FingerprintRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	res, err := h.engine.Fingerprint(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err, "failed to fingerprint content")
		return
	}

	common.SuccessResponse(c, res)
}

// TrustScore handles POST /trust-score
func (h *Handler) TrustScore(c *gin.Context) {
	var req TrustScoreRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	common.SuccessResponse(c, h.engine.TrustScore(&req))
}

// CheckBlocklist handles GET /blocklist/check?domain=
func (h *Handler) CheckBlocklist(c *gin.Context) {
	var q BlocklistQuery
	if !middleware.ValidateAndBindQuery(c, &q) {
		return
	}

	res, err := h.engine.CheckBlocklist(q.Domain)
	if err != nil {
		h.fail(c, err, "failed to check blocklist")
		return
	}

	common.SuccessResponse(c, res)
}

// ListCampaigns handles GET /campaigns
func (h *Handler) ListCampaigns(c *gin.Context) {
	params := pagination.ParseParams(c)
	campaigns := h.engine.Campaigns()

	start, end := params.Window(len(campaigns))
	meta := pagination.BuildMeta(params.Limit, params.Offset, int64(len(campaigns)))
	common.SuccessResponseWithMeta(c, campaigns[start:end], meta)
}

func (h *Handler) fail(c *gin.Context, err error, message string) {
	var appErr *common.AppError
	switch {
	case errors.Is(err, ErrInvalidInput):
		appErr = common.NewBadRequestError(err.Error(), err)
	case errors.Is(err, ErrBlocklistUnavailable):
		appErr = common.NewServiceUnavailableError(err.Error(), err)
	default:
		if wrapped, ok := common.AsAppError(err); ok {
			appErr = wrapped
			break
		}
		logger.WithContext(c.Request.Context()).Error(message, zap.Error(err))
		appErr = common.NewInternalServerError(message, err)
	}
	common.AppErrorResponse(c, appErr)
}
