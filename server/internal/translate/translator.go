package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result 翻译结果。Degraded 为 true 时 Text 是未经翻译的原文。
type Result struct {
	Text     string
	Degraded bool
	Err      error
}

// Translator 双向翻译能力，失败时不向上抛错，而是返回原文并标记 Degraded。
type Translator interface {
	Translate(ctx context.Context, text, target string) Result
}

// Identity 原样返回，用于关闭翻译或测试。
type Identity struct{}

func (Identity) Translate(_ context.Context, text, _ string) Result {
	return Result{Text: text}
}

// HTTPTranslator 调用 Google translate_a/single 风格的免密钥接口。
type HTTPTranslator struct {
	apiURL     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPTranslator 创建 HTTP 翻译器
func NewHTTPTranslator(apiURL string, timeout time.Duration) *HTTPTranslator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTranslator{
		apiURL:     apiURL,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Translate 翻译到 target（ISO 639-1）。
func (t *HTTPTranslator) Translate(ctx context.Context, text, target string) Result {
	translated, err := t.do(ctx, text, target)
	if err != nil {
		return Result{Text: text, Degraded: true, Err: err}
	}
	return Result{Text: translated}
}

func (t *HTTPTranslator) do(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if target == "" {
		return "", errors.New("empty target language")
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("translate API error (status %d): %s", resp.StatusCode, string(body))
	}

	return parseSegments(body)
}

// parseSegments 解析 [[["译文","原文",...],...],...] 结构并拼接所有片段。
func parseSegments(body []byte) (string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.New("empty translate response")
	}

	var segments [][]any
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return "", fmt.Errorf("unmarshal segments: %w", err)
	}

	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("no translated segments")
	}
	return sb.String(), nil
}
