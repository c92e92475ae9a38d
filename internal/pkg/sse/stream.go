package sse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var (
	ErrStreamClosed    = errors.New("stream closed")
	ErrTooManyStreams  = errors.New("too many open streams")
	ErrStreamNotOpened = errors.New("stream not opened")
)

// Stream SSE 流(封装 Client 和 Context)
//
// Producers call Send from any goroutine and Finish once done; Serve owns the
// response writer and returns after the last event is written or the client
// goes away.
type Stream struct {
	client    *Client
	ctx       *gin.Context
	reqCtx    context.Context // gin.Context 会被复用, 生产者只能用这个
	hub       *Hub
	heartbeat time.Duration
	onError   func(error)

	mu       sync.RWMutex
	finished bool
	opened   atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
	seq       atomic.Int32

	connectTime time.Time
}

// StreamBuilder 构建器
type StreamBuilder struct {
	ginCtx     *gin.Context
	hub        *Hub
	resource   string
	bufferSize int
	heartbeat  time.Duration
	onError    func(error)
}

// NewStream 创建 Stream 构建器
func NewStream(c *gin.Context, hub *Hub) *StreamBuilder {
	return &StreamBuilder{
		ginCtx:     c,
		hub:        hub,
		bufferSize: 10,               // 默认缓冲区
		heartbeat:  15 * time.Second, // 默认 15s 心跳
	}
}

// WithResource 设置资源 ID
func (b *StreamBuilder) WithResource(resource string) *StreamBuilder {
	b.resource = resource
	return b
}

// WithBufferSize 设置 Channel 缓冲区大小
func (b *StreamBuilder) WithBufferSize(size int) *StreamBuilder {
	if size > 0 {
		b.bufferSize = size
	}
	return b
}

// WithHeartbeat 设置心跳间隔(0 表示禁用心跳)
func (b *StreamBuilder) WithHeartbeat(interval time.Duration) *StreamBuilder {
	b.heartbeat = interval
	return b
}

// OnError 设置错误处理钩子
func (b *StreamBuilder) OnError(fn func(error)) *StreamBuilder {
	b.onError = fn
	return b
}

// Build 构建 Stream
func (b *StreamBuilder) Build() *Stream {
	return &Stream{
		client: &Client{
			ID:       uuid.New().String(),
			Channel:  make(chan Event, b.bufferSize),
			Resource: b.resource,
		},
		ctx:       b.ginCtx,
		reqCtx:    b.ginCtx.Request.Context(),
		hub:       b.hub,
		heartbeat: b.heartbeat,
		onError:   b.onError,
		done:      make(chan struct{}),
	}
}

// Open registers the stream and writes the SSE headers plus a connected
// event. Nothing is written when the resource already has limit streams.
func (s *Stream) Open(limit int) error {
	if !s.hub.TryRegister(s.client, limit) {
		return ErrTooManyStreams
	}
	s.opened.Store(true)
	s.connectTime = time.Now()

	s.ctx.Header("Content-Type", "text/event-stream")
	s.ctx.Header("Cache-Control", "no-cache")
	s.ctx.Header("Connection", "keep-alive")
	s.ctx.Header("X-Accel-Buffering", "no")

	connected := Event{
		Type: "connected",
		Data: map[string]string{
			"client_id": s.client.ID,
			"resource":  s.client.Resource,
		},
	}
	if err := s.write(connected.FormatSSE()); err != nil {
		s.Close()
		return err
	}
	return nil
}

// Send 发送事件(并发安全), 缓冲区满时阻塞直到被消费或连接断开
func (s *Stream) Send(eventType string, data interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.finished {
		return ErrStreamClosed
	}
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}
	event := Event{
		ID:   int(s.seq.Add(1)),
		Type: eventType,
		Data: data,
	}
	select {
	case s.client.Channel <- event:
		return nil
	case <-s.done:
		return ErrStreamClosed
	case <-s.reqCtx.Done():
		return ErrStreamClosed
	}
}

// Finish 标记不再有新事件, Serve 写完剩余事件后返回(幂等)
func (s *Stream) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.finished = true
		close(s.client.Channel)
	}
}

// Close 关闭流(幂等)
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.hub.Unregister(s.client)
	})
}

// Serve 开始流式传输(阻塞直到 Finish 或连接关闭)
func (s *Stream) Serve() error {
	if !s.opened.Load() {
		return ErrStreamNotOpened
	}
	defer s.Close()

	var tick <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	clientGone := s.reqCtx.Done()
	for {
		select {
		case <-clientGone:
			return nil

		case event, ok := <-s.client.Channel:
			if !ok {
				return nil
			}
			if err := s.write(event.FormatSSE()); err != nil {
				return err
			}

		case <-tick:
			if err := s.write(": heartbeat\n\n"); err != nil {
				return err
			}
		}
	}
}

func (s *Stream) write(msg string) error {
	if _, err := fmt.Fprint(s.ctx.Writer, msg); err != nil {
		if s.onError != nil {
			s.onError(err)
		}
		return err
	}
	s.ctx.Writer.Flush()
	return nil
}

// ClientID 获取客户端 ID
func (s *Stream) ClientID() string {
	return s.client.ID
}

// Duration 获取连接时长
func (s *Stream) Duration() time.Duration {
	if s.connectTime.IsZero() {
		return 0
	}
	return time.Since(s.connectTime)
}
