package workerpool

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Priority 优先级定义
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
	ErrQueueFull  = errors.New("worker pool queue is full")
	ErrDuplicate  = errors.New("task key already queued")
)

// ============= 配置 =============

// Config Worker Pool 配置
type Config struct {
	Workers   int `mapstructure:"workers"`    // 并发 worker 数量
	QueueSize int `mapstructure:"queue_size"` // 等待队列上限，0 表示不限
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Workers:   5,
		QueueSize: 1000,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if c.QueueSize < 0 {
		return errors.New("queue size must not be negative")
	}
	return nil
}

// ============= 统计信息 =============

// Statistics 统计信息
type Statistics struct {
	Submitted int64 // 已提交
	Completed int64 // 已完成
	Rejected  int64 // 队列满被拒绝
	Promoted  int64 // 排队中被提升优先级
	Running   int64 // 运行中

	HighPriority   int64
	NormalPriority int64
	LowPriority    int64
}

type statistics struct {
	mu sync.Mutex
	s  Statistics
}

func (st *statistics) incSubmitted(priority Priority) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Submitted++
	switch {
	case priority >= PriorityHigh:
		st.s.HighPriority++
	case priority >= PriorityNormal:
		st.s.NormalPriority++
	default:
		st.s.LowPriority++
	}
}

func (st *statistics) add(field *int64, delta int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	*field += delta
}

func (st *statistics) get() Statistics {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// ============= 优先级队列 =============

type priorityTask struct {
	Priority Priority
	Seq      uint64 // 同优先级内按提交顺序 FIFO
	Key      string
	Task     func()
	index    int
}

type priorityQueue []*priorityTask

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority > pq[j].Priority
	}
	return pq[i].Seq < pq[j].Seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	task := x.(*priorityTask)
	task.index = len(*pq)
	*pq = append(*pq, task)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*pq = old[0 : n-1]
	return task
}

// ============= Worker Pool =============

// Pool 基于 ants 的优先级 Worker Pool
// 调度器先占用一个 worker 槽位再出队，保证高优先级任务总是先于已排队的低优先级任务执行
type Pool struct {
	pool   *ants.Pool
	config *Config

	queue    priorityQueue
	keyed    map[string]*priorityTask
	seq      uint64
	queueMu  sync.Mutex
	notEmpty chan struct{}
	slots    chan struct{}

	stats *statistics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *zap.Logger
}

// New 创建 Worker Pool
func New(config *Config, logger *zap.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid worker pool config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	antsPool, err := ants.NewPool(config.Workers,
		ants.WithPanicHandler(func(err interface{}) {
			logger.Error("worker panic", zap.Any("error", err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		pool:     antsPool,
		config:   config,
		queue:    make(priorityQueue, 0, 64),
		keyed:    make(map[string]*priorityTask),
		notEmpty: make(chan struct{}, 1),
		slots:    make(chan struct{}, config.Workers),
		stats:    &statistics{},
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
	heap.Init(&p.queue)

	p.wg.Add(1)
	go p.scheduler()

	return p, nil
}

// Submit 提交普通优先级任务
func (p *Pool) Submit(task func()) error {
	return p.SubmitWithPriority(PriorityNormal, task)
}

// SubmitWithPriority 提交带优先级的任务
func (p *Pool) SubmitWithPriority(priority Priority, task func()) error {
	return p.SubmitKeyed("", priority, task)
}

// SubmitKeyed 提交带 key 的任务，排队期间可通过 Promote 提升优先级。
// 同一 key 同时只能排队一个任务
func (p *Pool) SubmitKeyed(key string, priority Priority, task func()) error {
	select {
	case <-p.ctx.Done():
		return ErrPoolClosed
	default:
	}

	p.queueMu.Lock()
	if p.config.QueueSize > 0 && p.queue.Len() >= p.config.QueueSize {
		p.queueMu.Unlock()
		p.stats.add(&p.stats.s.Rejected, 1)
		return ErrQueueFull
	}
	if key != "" {
		if _, exists := p.keyed[key]; exists {
			p.queueMu.Unlock()
			return ErrDuplicate
		}
	}

	p.seq++
	pt := &priorityTask{Priority: priority, Seq: p.seq, Key: key, Task: task}
	heap.Push(&p.queue, pt)
	if key != "" {
		p.keyed[key] = pt
	}
	p.queueMu.Unlock()

	p.stats.incSubmitted(priority)
	p.signal()
	return nil
}

// Promote 提升排队中任务的优先级，任务已出队或优先级不更高时返回 false
func (p *Pool) Promote(key string, priority Priority) bool {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()

	pt, ok := p.keyed[key]
	if !ok || pt.Priority >= priority {
		return false
	}
	pt.Priority = priority
	heap.Fix(&p.queue, pt.index)
	p.stats.add(&p.stats.s.Promoted, 1)
	return true
}

func (p *Pool) signal() {
	select {
	case p.notEmpty <- struct{}{}:
	default:
	}
}

// scheduler 调度器：占用槽位 -> 取最高优先级任务 -> 交给 ants 执行
func (p *Pool) scheduler() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case p.slots <- struct{}{}:
		}

		pt, ok := p.next()
		if !ok {
			return
		}

		task := pt.Task
		err := p.pool.Submit(func() {
			p.stats.add(&p.stats.s.Running, 1)
			defer func() {
				p.stats.add(&p.stats.s.Running, -1)
				p.stats.add(&p.stats.s.Completed, 1)
				<-p.slots
			}()
			task()
		})
		if err != nil {
			<-p.slots
			p.logger.Warn("failed to hand task to worker, requeueing", zap.Error(err))
			p.requeue(pt)
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// next 阻塞直到有任务或 pool 关闭
func (p *Pool) next() (*priorityTask, bool) {
	for {
		p.queueMu.Lock()
		if p.queue.Len() > 0 {
			pt := heap.Pop(&p.queue).(*priorityTask)
			if pt.Key != "" {
				delete(p.keyed, pt.Key)
			}
			p.queueMu.Unlock()
			return pt, true
		}
		p.queueMu.Unlock()

		select {
		case <-p.ctx.Done():
			return nil, false
		case <-p.notEmpty:
		}
	}
}

func (p *Pool) requeue(pt *priorityTask) {
	p.queueMu.Lock()
	heap.Push(&p.queue, pt)
	if pt.Key != "" {
		p.keyed[pt.Key] = pt
	}
	p.queueMu.Unlock()
	p.signal()
}

// ============= 公共方法 =============

// QueueLength 获取排队任务数
func (p *Pool) QueueLength() int {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	return p.queue.Len()
}

// Running 获取运行中的 worker 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Stats 获取统计信息
func (p *Pool) Stats() Statistics {
	return p.stats.get()
}

// Shutdown 停止调度并等待运行中的任务结束，返回被丢弃的排队任务数
func (p *Pool) Shutdown(timeout time.Duration) int {
	p.cancel()
	p.wg.Wait()

	p.queueMu.Lock()
	dropped := p.queue.Len()
	p.queue = p.queue[:0]
	p.keyed = make(map[string]*priorityTask)
	p.queueMu.Unlock()

	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("workers still running at shutdown", zap.Error(err))
	}
	return dropped
}
