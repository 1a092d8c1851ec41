package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bella/server/internal/config"
)

// 兜底文案，社交上下文永远不会让一轮对话失败。
const (
	NotConnected = "No X trends."
	NoTrends     = "No hot trends today."
	Unavailable  = "X API down, let's make our own trends! 😎"
)

// Source 提供可选的社交上下文。
type Source interface {
	Context(ctx context.Context) string
	Configured() bool
}

// XSource 从 X recent search 取第一条推文作为话题。
type XSource struct {
	cfg        config.SocialConfig
	httpClient *http.Client
}

// NewXSource 创建 X 话题源
func NewXSource(cfg config.SocialConfig) *XSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &XSource{cfg: cfg, httpClient: &http.Client{}}
}

func (s *XSource) Configured() bool { return strings.TrimSpace(s.cfg.APIKey) != "" }

// Context 返回话题文本，任何失败都替换为兜底文案。
func (s *XSource) Context(ctx context.Context) string {
	if !s.Configured() {
		return NotConnected
	}
	text, err := s.fetch(ctx)
	if err != nil {
		log.Printf("[Social] fetch trends failed: %v", err)
		return Unavailable
	}
	if text == "" {
		return NoTrends
	}
	return text
}

func (s *XSource) fetch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("query", s.cfg.Query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIURL+"/tweets/search/recent?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("X API error (status %d)", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Data) == 0 {
		return "", nil
	}
	return strings.TrimSpace(result.Data[0].Text), nil
}
