package service

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/biz"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/linkedin"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	apperrors "github.com/lk2023060901/linkedin-discovery/internal/pkg/errors"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/response"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/sse"
)

// DiscoveryService 发现 HTTP 服务
type DiscoveryService struct {
	uc     *biz.DiscoveryUseCase
	batch  BatchConfig
	hub    *sse.Hub
	logger *logger.Logger
	now    func() time.Time
}

// NewDiscoveryService 创建发现服务
func NewDiscoveryService(uc *biz.DiscoveryUseCase, batch BatchConfig, logger *logger.Logger) *DiscoveryService {
	return &DiscoveryService{
		uc:     uc,
		batch:  batch,
		hub:    sse.NewHub(),
		logger: logger.Named("discovery.http"),
		now:    time.Now,
	}
}

// RegisterRoutes 注册路由
func (s *DiscoveryService) RegisterRoutes(r *gin.RouterGroup) {
	d := r.Group("/discovery")
	{
		d.POST("/search", s.Search)
		d.POST("/batch", s.BatchSearch)
		d.GET("/status", s.Status)
		d.POST("/metrics", s.RecordOutcome)
		d.GET("/metrics/summary", s.MetricsSummary)
		d.DELETE("/cache/:term", s.InvalidateCache)
		d.POST("/validate", s.ValidateURL)
		d.POST("/select", s.Select)
	}
}

// Search 查找公司的 LinkedIn 页面
func (s *DiscoveryService) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	resp, err := s.search(c.Request.Context(), req.CompanyName, types.ParsePriority(req.Priority))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, resp)
}

// search resolves one company. Failures the caller recovers from by typing the
// URL in come back as a manual entry response instead of an error.
func (s *DiscoveryService) search(ctx context.Context, companyName string, priority types.Priority) (*SearchResponse, error) {
	ctx = logger.WithSearchTerm(ctx, types.NormalizeTerm(companyName))
	start := s.now()
	results, err := s.uc.Discover(ctx, companyName, priority)
	elapsed := s.now().Sub(start).Milliseconds()

	resp := &SearchResponse{
		SearchTerm: types.DisplayTerm(companyName),
		Results:    []types.CandidateResult{},
		ElapsedMs:  elapsed,
	}

	if err != nil {
		if !degradesToManualEntry(err) {
			return nil, err
		}
		resp.ManualEntry = true
		resp.Reason = types.ManualEntryReason(err)
		s.logger.WithContext(ctx).Info("offering manual entry",
			zap.String("reason", resp.Reason),
			zap.Int64("elapsed_ms", elapsed))
		return resp, nil
	}

	resp.Results = results
	resp.ResultCount = len(results)
	if top, ok := s.uc.AutoSelect(results); ok {
		resp.AutoSelected = top
	}
	return resp, nil
}

// Status 队列与配额状态
func (s *DiscoveryService) Status(c *gin.Context) {
	status, err := s.uc.QueueStatus(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to read queue status", zap.Error(err))
		response.ErrorWithCode(c, apperrors.ErrServiceUnavail, "quota tracker unavailable")
		return
	}
	response.Success(c, status)
}

// RecordOutcome 记录用户对发现结果的操作
func (s *DiscoveryService) RecordOutcome(c *gin.Context) {
	var req RecordOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	metric, err := s.uc.RecordOutcome(c.Request.Context(), biz.Outcome{
		SearchTerm:     req.SearchTerm,
		Action:         types.UserAction(req.UserAction),
		SelectedURL:    req.SelectedURL,
		Confidence:     req.Confidence,
		ResultCount:    req.ResultCount,
		ResponseTimeMs: req.ResponseTimeMs,
	})
	if err != nil {
		response.HandleError(c, apperrors.Wrap(err, apperrors.ErrDiscoveryInvalidOutcome, err.Error()))
		return
	}
	response.Created(c, metric)
}

// MetricsSummary 统计最近的用户操作
func (s *DiscoveryService) MetricsSummary(c *gin.Context) {
	var req MetricsSummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	since := s.now().Add(-defaultSummaryWindow)
	switch {
	case req.Since != "":
		t, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			response.ErrorWithCode(c, apperrors.ErrInvalidParams, "since must be RFC3339")
			return
		}
		since = t
	case req.Window != "":
		w, err := time.ParseDuration(req.Window)
		if err != nil || w <= 0 {
			response.ErrorWithCode(c, apperrors.ErrInvalidParams, "window must be a positive duration")
			return
		}
		since = s.now().Add(-w)
	}

	summary, err := s.uc.MetricsSummary(c.Request.Context(), since.UTC())
	if err != nil {
		s.logger.Error("failed to summarize metrics", zap.Error(err))
		response.ErrorWithCode(c, apperrors.ErrInternalServer, "failed to summarize metrics")
		return
	}
	response.Success(c, summary)
}

// InvalidateCache 使缓存失效
func (s *DiscoveryService) InvalidateCache(c *gin.Context) {
	term := c.Param("term")
	if err := s.uc.InvalidateCache(c.Request.Context(), term); err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, InvalidateCacheResponse{
		SearchTerm:  types.NormalizeTerm(term),
		Invalidated: true,
	})
}

// ValidateURL 校验 LinkedIn 公司页面链接
func (s *DiscoveryService) ValidateURL(c *gin.Context) {
	var req ValidateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	canonical, ok := s.uc.ValidateURL(req.URL)
	if !ok {
		response.Success(c, ValidateURLResponse{Valid: false})
		return
	}
	response.Success(c, ValidateURLResponse{
		Valid:        true,
		CanonicalURL: canonical,
		VanityName:   linkedin.VanityName(canonical),
	})
}

// Select 生成公司 LinkedIn 记录
func (s *DiscoveryService) Select(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	method := types.DiscoveryMethod(req.Method)
	if method == "" {
		method = types.MethodManual
	}
	var selection *types.CandidateResult
	if req.URL != "" {
		selection = &types.CandidateResult{URL: req.URL, Confidence: req.Confidence}
	}

	record, err := s.uc.BuildCompanyRecord(selection, method)
	if err != nil {
		response.HandleError(c, apperrors.Wrap(err, apperrors.ErrDiscoveryInvalidURL, err.Error()))
		return
	}
	response.Success(c, record)
}

// handleError 统一错误处理
func (s *DiscoveryService) handleError(c *gin.Context, err error) {
	appErr := discoveryErrors.Wrap(err, apperrors.ErrInternalServer)
	if apperrors.IsServerError(appErr.Code) {
		s.logger.WithContext(c.Request.Context()).Error("discovery request failed", zap.Error(err))
	}
	response.HandleError(c, appErr)
}

// degradesToManualEntry reports failures the caller handles by typing the URL in
func degradesToManualEntry(err error) bool {
	return errors.Is(err, types.ErrNoResults) ||
		errors.Is(err, types.ErrTransport) ||
		errors.Is(err, types.ErrQuotaExhausted) ||
		errors.Is(err, types.ErrQueueFull)
}

var discoveryErrors = apperrors.Mapper{
	{Target: types.ErrInvalidInput, Code: apperrors.ErrDiscoveryInvalidTerm},
	{Target: types.ErrNoResults, Code: apperrors.ErrDiscoveryNoResults},
	{Target: types.ErrTransport, Code: apperrors.ErrDiscoveryTransport},
	{Target: types.ErrQuotaExhausted, Code: apperrors.ErrDiscoveryQuotaExhausted},
	{Target: types.ErrQueueFull, Code: apperrors.ErrDiscoveryBusy},
	{Target: types.ErrCacheUnavailable, Code: apperrors.ErrDiscoveryCacheUnavailable},
	{Target: types.ErrDispatcherClosed, Code: apperrors.ErrDiscoveryClosed},
}
