package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bella/server/internal/metrics"
)

// ClientHandler 处理客户端主动发来的消息（由 Orchestrator 实现），返回值会回写给该客户端
type ClientHandler interface {
	HandleClientMessage(ctx context.Context, sessionID string, msg *ClientMessage) (*ServerMessage, error)
}

// HubConfig 旁路通道配置
type HubConfig struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	SendBuffer   int
	// MaxMessageSize 单条客户端消息上限，超出即断开
	MaxMessageSize int64
}

// Hub 按会话维护 websocket 观察者，向它们推送状态变化
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	handler ClientHandler
	config  HubConfig
	logger  *log.Logger
}

// NewHub 创建 Hub，handler 可以为 nil（只推送不接收）
func NewHub(config HubConfig, handler ClientHandler) *Hub {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = 16
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = 64 << 10
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		handler: handler,
		config:  config,
		logger:  log.Default(),
	}
}

// SetHandler 注入客户端消息处理器
func (h *Hub) SetHandler(handler ClientHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

// Attach 接管一个已升级的连接，连接关闭后自动注销
func (h *Hub) Attach(sessionID string, conn *websocket.Conn) *Client {
	c := &Client{
		sessionID: sessionID,
		conn:      conn,
		hub:       h,
		send:      make(chan *ServerMessage, h.config.SendBuffer),
		closeChan: make(chan struct{}),
	}
	c.queue = NewEventQueue("ws:"+sessionID, c.handle, h.logger)

	h.mu.Lock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*Client]struct{})
	}
	h.clients[sessionID][c] = struct{}{}
	h.mu.Unlock()
	metrics.WSConnections.Inc()

	go c.readLoop()
	go c.writeLoop()
	h.logger.Printf("[Hub] observer attached for session %s", sessionID)
	return c
}

func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.sessionID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			metrics.WSConnections.Dec()
		}
		if len(set) == 0 {
			delete(h.clients, c.sessionID)
		}
	}
}

// Publish 推送给该会话的全部观察者。发送缓冲满的观察者会丢掉本条消息。
func (h *Hub) Publish(sessionID string, msg *ServerMessage) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[sessionID]))
	for c := range h.clients[sessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		cp := *msg
		if !c.enqueue(&cp) {
			h.logger.Printf("[Hub] ⚠️  send buffer full, dropping %s for session %s", msg.Type, sessionID)
		}
	}
}

// Observers 当前会话的观察者数量
func (h *Hub) Observers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Close 断开全部观察者
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.Close()
	}
}

// Client 是一个 websocket 观察者
type Client struct {
	sessionID string
	conn      *websocket.Conn
	hub       *Hub
	send      chan *ServerMessage
	queue     *EventQueue
	seq       int64

	closeOnce sync.Once
	closeChan chan struct{}
}

func (c *Client) enqueue(msg *ServerMessage) bool {
	select {
	case <-c.closeChan:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// readTimeout 两个 ping 周期内收不到任何帧（包括 pong）就认为连接已半开
func (c *Client) readTimeout() time.Duration {
	return 2 * c.hub.config.PingInterval
}

func (c *Client) readLoop() {
	defer c.Close()

	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.readTimeout()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.readTimeout()))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Printf("[Hub] client read error: %v", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout()))
		if messageType != websocket.TextMessage {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(errorMessage(fmt.Sprintf("invalid message: %v", err)))
			continue
		}
		if msg.ClientTS.IsZero() {
			msg.ClientTS = time.Now()
		}
		if err := c.queue.Enqueue(&msg); err != nil {
			c.enqueue(errorMessage(err.Error()))
		}
	}
}

func (c *Client) handle(ctx context.Context, msg *ClientMessage) error {
	c.hub.mu.RLock()
	handler := c.hub.handler
	c.hub.mu.RUnlock()
	if handler == nil {
		return fmt.Errorf("no handler for %s", msg.Type)
	}

	reply, err := handler.HandleClientMessage(ctx, c.sessionID, msg)
	if err != nil {
		c.enqueue(errorMessage(err.Error()))
		return err
	}
	if reply != nil {
		c.enqueue(reply)
	}
	return nil
}

// writeLoop 是唯一写连接的协程，ping 也在这里发出
func (c *Client) writeLoop() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeChan:
			return
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.hub.logger.Printf("[Hub] write error for session %s: %v", c.sessionID, err)
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.hub.config.WriteTimeout)); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Client) write(msg *ServerMessage) error {
	c.seq++
	msg.Seq = c.seq
	if msg.ServerTS.IsZero() {
		msg.ServerTS = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal server message: %w", err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close 关闭连接并从 Hub 注销
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.hub.detach(c)
		c.queue.Close()
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.conn.Close()
		c.hub.logger.Printf("[Hub] observer detached for session %s", c.sessionID)
	})
}

func errorMessage(text string) *ServerMessage {
	return &ServerMessage{Type: EventTypeError, Error: text, ServerTS: time.Now()}
}
