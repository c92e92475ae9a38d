package sse

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// WorkerPool 工作池接口, ants.Pool 即满足
type WorkerPool interface {
	Submit(task func()) error
}

// BatchStats 批量处理统计
type BatchStats struct {
	Total   int `json:"total_count"`
	Success int `json:"success_count"`
	Failed  int `json:"failed_count"`
}

// BatchRunner 批量处理并通过 SSE 推送每一项的结果
//
// Events: batch-start, <prefix>-success / <prefix>-failed per item in
// completion order, then batch-complete.
type BatchRunner[T any] struct {
	stream      *Stream
	items       []T
	processFunc func(ctx context.Context, item T) (interface{}, error)
	workerPool  WorkerPool
	getItemName func(T) string
	eventPrefix string

	completed atomic.Int32
	success   atomic.Int32
	failed    atomic.Int32
}

// NewBatchRunner 创建批量处理器
func NewBatchRunner[T any](stream *Stream, items []T) *BatchRunner[T] {
	return &BatchRunner[T]{
		stream:      stream,
		items:       items,
		eventPrefix: "item",
	}
}

// WithEventPrefix 设置事件前缀(如 "company" 会生成 "company-success", "company-failed")
func (r *BatchRunner[T]) WithEventPrefix(prefix string) *BatchRunner[T] {
	r.eventPrefix = prefix
	return r
}

// WithWorkerPool 设置工作池
func (r *BatchRunner[T]) WithWorkerPool(pool WorkerPool) *BatchRunner[T] {
	r.workerPool = pool
	return r
}

// WithItemNamer 设置项目名称提取器
func (r *BatchRunner[T]) WithItemNamer(fn func(T) string) *BatchRunner[T] {
	r.getItemName = fn
	return r
}

// Process 设置处理函数
func (r *BatchRunner[T]) Process(fn func(ctx context.Context, item T) (interface{}, error)) *BatchRunner[T] {
	r.processFunc = fn
	return r
}

type itemResult[T any] struct {
	index  int
	item   T
	result interface{}
	err    error
}

// Run 执行批量处理(阻塞直到所有任务完成)
// Send failures after the client left are ignored; every item still runs to
// completion or until ctx ends.
func (r *BatchRunner[T]) Run(ctx context.Context) (BatchStats, error) {
	if r.processFunc == nil {
		return BatchStats{}, errors.New("process function not set")
	}
	if r.workerPool == nil {
		return BatchStats{}, errors.New("worker pool not set")
	}
	if r.getItemName == nil {
		r.getItemName = func(item T) string { return fmt.Sprint(item) }
	}

	total := len(r.items)
	r.send("batch-start", map[string]interface{}{
		"total_count": total,
	})

	resultCh := make(chan itemResult[T], total)
	for i, item := range r.items {
		idx, it := i, item
		err := r.workerPool.Submit(func() {
			res, err := r.processFunc(ctx, it)
			resultCh <- itemResult[T]{index: idx, item: it, result: res, err: err}
		})
		if err != nil {
			resultCh <- itemResult[T]{index: idx, item: it, err: fmt.Errorf("failed to submit task: %w", err)}
		}
	}

	for range r.items {
		res := <-resultCh
		completed := int(r.completed.Add(1))
		payload := map[string]interface{}{
			"index":     res.index + 1,
			"total":     total,
			"completed": completed,
			"item_name": r.getItemName(res.item),
		}
		if res.err != nil {
			r.failed.Add(1)
			payload["error"] = res.err.Error()
			r.send(r.eventPrefix+"-failed", payload)
			continue
		}
		r.success.Add(1)
		if res.result != nil {
			payload["data"] = res.result
		}
		r.send(r.eventPrefix+"-success", payload)
	}

	stats := r.Stats()
	r.send("batch-complete", stats)
	return stats, nil
}

// Stats 获取当前统计信息
func (r *BatchRunner[T]) Stats() BatchStats {
	return BatchStats{
		Total:   len(r.items),
		Success: int(r.success.Load()),
		Failed:  int(r.failed.Load()),
	}
}

// send 客户端断开后的错误直接忽略
func (r *BatchRunner[T]) send(eventType string, data interface{}) {
	_ = r.stream.Send(eventType, data)
}
