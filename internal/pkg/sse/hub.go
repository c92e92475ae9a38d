package sse

import (
	"encoding/json"
	"strconv"
	"sync"
)

// Event SSE 事件
type Event struct {
	ID   int         `json:"id,omitempty"` // 0 表示不输出 id 行
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// FormatSSE 格式化为 SSE 消息格式
func (e Event) FormatSSE() string {
	data, err := json.Marshal(e.Data)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	msg := ""
	if e.ID > 0 {
		msg = "id: " + strconv.Itoa(e.ID) + "\n"
	}
	return msg + "event: " + e.Type + "\ndata: " + string(data) + "\n\n"
}

// Client SSE 客户端连接
type Client struct {
	ID       string
	Channel  chan Event
	Resource string // 订阅的资源, 如 discovery:batch
}

// Hub 按资源统计在线的流
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Resource] == nil {
		h.clients[client.Resource] = make(map[*Client]struct{})
	}
	h.clients[client.Resource][client] = struct{}{}
}

// TryRegister registers the client unless the resource already has limit
// clients. A limit <= 0 means unlimited.
func (h *Hub) TryRegister(client *Client, limit int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.Resource]
	if limit > 0 && len(clients) >= limit {
		return false
	}
	if clients == nil {
		clients = make(map[*Client]struct{})
		h.clients[client.Resource] = clients
	}
	clients[client] = struct{}{}
	return true
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.Resource]; ok {
		delete(clients, client)
		// 清理空资源
		if len(clients) == 0 {
			delete(h.clients, client.Resource)
		}
	}
}

// ClientCount 获取订阅指定资源的客户端数量
func (h *Hub) ClientCount(resource string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[resource])
}
