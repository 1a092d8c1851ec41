package gateway

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// EventHandler 处理单条客户端消息
type EventHandler func(ctx context.Context, msg *ClientMessage) error

var (
	ErrQueueClosed = errors.New("event queue closed")
	ErrQueueFull   = errors.New("event queue full")
)

const (
	// 队列容量：超过此值的事件将被丢弃（背压控制）
	defaultQueueCapacity = 32
	// 事件处理超时
	defaultEventTimeout = 10 * time.Second
)

// EventQueue 为单个连接串行处理入站消息，保证处理顺序与到达顺序一致
type EventQueue struct {
	name    string
	handler EventHandler
	events  chan *ClientMessage
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *log.Logger

	mu        sync.Mutex
	processed int64
	dropped   int64
}

// NewEventQueue 创建事件队列并启动处理协程
func NewEventQueue(name string, handler EventHandler, logger *log.Logger) *EventQueue {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	eq := &EventQueue{
		name:    name,
		handler: handler,
		events:  make(chan *ClientMessage, defaultQueueCapacity),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
	eq.wg.Add(1)
	go eq.processLoop()
	return eq
}

// Enqueue 非阻塞入队，队列满时丢弃
func (eq *EventQueue) Enqueue(msg *ClientMessage) error {
	select {
	case <-eq.ctx.Done():
		return ErrQueueClosed
	default:
	}

	select {
	case eq.events <- msg:
		return nil
	default:
		eq.mu.Lock()
		eq.dropped++
		eq.mu.Unlock()
		eq.logger.Printf("[EventQueue] %s queue full, dropping event: type=%s", eq.name, msg.Type)
		return ErrQueueFull
	}
}

func (eq *EventQueue) processLoop() {
	defer eq.wg.Done()
	for {
		select {
		case <-eq.ctx.Done():
			return
		case msg := <-eq.events:
			eq.process(msg)
		}
	}
}

func (eq *EventQueue) process(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(eq.ctx, defaultEventTimeout)
	defer cancel()

	start := time.Now()
	if err := eq.handler(ctx, msg); err != nil {
		eq.logger.Printf("[EventQueue] %s event failed: type=%s error=%v", eq.name, msg.Type, err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		eq.logger.Printf("[EventQueue] ⚠️  Slow event processing: type=%s processing_time=%v", msg.Type, elapsed)
	}

	eq.mu.Lock()
	eq.processed++
	eq.mu.Unlock()
}

// Close 停止处理，未处理的事件被丢弃
func (eq *EventQueue) Close() {
	eq.cancel()
	eq.wg.Wait()
}

// Stats 已处理与已丢弃的事件数
func (eq *EventQueue) Stats() (processed, dropped int64) {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	return eq.processed, eq.dropped
}
