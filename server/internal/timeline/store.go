package timeline

import (
	"context"

	"bella/server/internal/model"
)

// Store 是会话历史的 append-only 存储。
type Store interface {
	// Append 追加一条历史，返回本次写入的 seq。
	// 约定：同一 session 的 seq 单调递增；不去重、不回改。
	Append(ctx context.Context, sessionID string, entry *model.HistoryEntry) (int64, error)
	// List 返回该 session 的全部历史（按 seq 顺序）。
	List(ctx context.Context, sessionID string) ([]model.HistoryEntry, error)
	// Recent 返回最近 n 条历史（按 seq 顺序），用于构造提示词上下文。
	Recent(ctx context.Context, sessionID string, n int) ([]model.HistoryEntry, error)
}
