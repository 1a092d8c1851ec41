package session

import "context"

type Store interface {
	// Create 创建新会话（分配 ID 并从持久化存储恢复状态）
	Create(ctx context.Context) (*Session, error)
	// Get 获取会话，不存在时返回 ErrNotFound
	Get(ctx context.Context, id string) (*Session, error)
	// GetOrCreate 以指定 ID 获取会话，不存在时创建
	GetOrCreate(ctx context.Context, id string) (*Session, error)
	// Delete 结束会话
	Delete(ctx context.Context, id string) error
	// Count 当前会话数
	Count() int
}
