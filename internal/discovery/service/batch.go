package service

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	apperrors "github.com/lk2023060901/linkedin-discovery/internal/pkg/errors"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/response"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/sse"
)

const batchResource = "discovery:batch"

// BatchConfig 批量发现配置
type BatchConfig struct {
	Concurrency int           `mapstructure:"concurrency"` // 单个批量请求同时提交的公司数
	MaxStreams  int           `mapstructure:"max_streams"` // 同时进行的批量请求上限, 0 表示不限
	Heartbeat   time.Duration `mapstructure:"heartbeat"`
}

// DefaultBatchConfig 默认配置
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Concurrency: 4,
		MaxStreams:  4,
		Heartbeat:   15 * time.Second,
	}
}

// Validate 校验配置
func (c BatchConfig) Validate() error {
	if c.Concurrency <= 0 {
		return errors.New("batch concurrency must be positive")
	}
	if c.MaxStreams < 0 {
		return errors.New("batch max streams must not be negative")
	}
	if c.Heartbeat < 0 {
		return errors.New("batch heartbeat must not be negative")
	}
	return nil
}

// BatchSearch 批量查找, 通过 SSE 按完成顺序推送每家公司的结果
func (s *DiscoveryService) BatchSearch(c *gin.Context) {
	var req BatchSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	pool, err := ants.NewPool(s.batch.Concurrency)
	if err != nil {
		s.logger.Error("failed to create batch pool", zap.Error(err))
		response.ErrorWithCode(c, apperrors.ErrInternalServer, "failed to start batch search")
		return
	}

	stream := sse.NewStream(c, s.hub).
		WithResource(batchResource).
		WithBufferSize(len(req.CompanyNames) + 2).
		WithHeartbeat(s.batch.Heartbeat).
		OnError(func(err error) {
			s.logger.Debug("batch stream write failed", zap.Error(err))
		}).
		Build()
	if err := stream.Open(s.batch.MaxStreams); err != nil {
		pool.Release()
		if errors.Is(err, sse.ErrTooManyStreams) {
			response.ErrorWithCode(c, apperrors.ErrDiscoveryBusy, "too many batch searches in progress")
		}
		return
	}

	ctx := c.Request.Context()
	priority := types.ParsePriority(req.Priority)
	runner := sse.NewBatchRunner(stream, req.CompanyNames).
		WithEventPrefix("company").
		WithWorkerPool(pool).
		WithItemNamer(types.DisplayTerm).
		Process(func(ctx context.Context, name string) (interface{}, error) {
			return s.search(ctx, name, priority)
		})

	go func() {
		defer stream.Finish()
		defer pool.Release()

		stats, err := runner.Run(ctx)
		if err != nil {
			s.logger.Error("batch search aborted", zap.Error(err))
			return
		}
		s.logger.Info("batch search finished",
			zap.String("client_id", stream.ClientID()),
			zap.Int("total", stats.Total),
			zap.Int("success", stats.Success),
			zap.Int("failed", stats.Failed))
	}()

	if err := stream.Serve(); err != nil {
		s.logger.Debug("batch stream ended early", zap.Error(err))
	}
}
