package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bella/server/internal/config"
)

// Provider 统一的补全能力：每个实现对应一个模型服务商。
type Provider interface {
	// Name 返回提供商标识（写入回复的 provider 字段）
	Name() string
	// Available 是否具备可用凭证
	Available() bool
	// Complete 完成文本生成任务
	Complete(ctx context.Context, prompt string) (string, error)
}

// Message 消息结构
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// NewProviders 按配置的优先级创建提供商列表（未过滤凭证）。
func NewProviders(cfg config.ProvidersConfig) ([]Provider, error) {
	out := make([]Provider, 0, len(cfg.Order))
	for _, name := range cfg.Order {
		pc, ok := cfg.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unsupported LLM provider: %s", name)
		}
		switch name {
		case "anthropic":
			out = append(out, NewAnthropicClient(pc))
		default:
			out = append(out, NewOpenAICompatibleClient(name, pc))
		}
	}
	return out, nil
}

// OpenAICompatibleClient 兼容 OpenAI Chat Completions 协议的客户端（OpenAI、Grok）。
type OpenAICompatibleClient struct {
	name       string
	config     config.LLMProviderConfig
	httpClient *http.Client
}

// NewOpenAICompatibleClient 创建 OpenAI 兼容客户端
func NewOpenAICompatibleClient(name string, cfg config.LLMProviderConfig) *OpenAICompatibleClient {
	return &OpenAICompatibleClient{
		name:       name,
		config:     cfg,
		httpClient: &http.Client{},
	}
}

func (c *OpenAICompatibleClient) Name() string    { return c.name }
func (c *OpenAICompatibleClient) Available() bool { return strings.TrimSpace(c.config.APIKey) != "" }

// Complete 完成文本生成（choices[0].message.content）
func (c *OpenAICompatibleClient) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":    c.config.Model,
		"messages": []Message{{Role: "user", Content: prompt}},
	}
	if c.config.MaxTokens > 0 {
		reqBody["max_tokens"] = c.config.MaxTokens
	}
	if c.config.Temperature > 0 {
		reqBody["temperature"] = c.config.Temperature
	}

	respBody, err := postJSON(ctx, c.httpClient, c.config.APIURL+"/chat/completions", reqBody, map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
	})
	if err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := strings.TrimSpace(result.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty content in response")
	}
	return content, nil
}

// AnthropicClient Anthropic 客户端
type AnthropicClient struct {
	config     config.LLMProviderConfig
	httpClient *http.Client
}

// NewAnthropicClient 创建 Anthropic 客户端
func NewAnthropicClient(cfg config.LLMProviderConfig) *AnthropicClient {
	return &AnthropicClient{
		config:     cfg,
		httpClient: &http.Client{},
	}
}

func (c *AnthropicClient) Name() string    { return "anthropic" }
func (c *AnthropicClient) Available() bool { return strings.TrimSpace(c.config.APIKey) != "" }

// Complete 完成文本生成（content[0].text）
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	maxTokens := c.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 200
	}
	reqBody := map[string]any{
		"model":      c.config.Model,
		"messages":   []Message{{Role: "user", Content: prompt}},
		"max_tokens": maxTokens,
	}
	if c.config.Temperature > 0 {
		reqBody["temperature"] = c.config.Temperature
	}

	respBody, err := postJSON(ctx, c.httpClient, c.config.APIURL+"/messages", reqBody, map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
			Type string `json:"type"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	text := strings.TrimSpace(result.Content[0].Text)
	if text == "" {
		return "", fmt.Errorf("empty text in response")
	}
	return text, nil
}

// postJSON 发送 JSON 请求，非 2xx 视为失败。
func postJSON(ctx context.Context, client *http.Client, url string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 只截取少量错误信息，避免日志过长
		if len(respBody) > 512 {
			respBody = respBody[:512]
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
