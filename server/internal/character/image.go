package character

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"bella/server/internal/config"
)

// ErrGenerationFailed 远端任务失败或轮询超出上限
var ErrGenerationFailed = errors.New("image generation failed")

// ImageGenerator 角色形象生成能力。失败时返回基础形象，不向上抛错。
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Configured() bool
}

// Replicate 通过 predictions 接口异步生成，再轮询结果。
type Replicate struct {
	cfg        config.ImageConfig
	httpClient *http.Client
}

// NewReplicate 创建 Replicate 客户端
func NewReplicate(cfg config.ImageConfig) *Replicate {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 30
	}
	return &Replicate{cfg: cfg, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (r *Replicate) Configured() bool { return strings.TrimSpace(r.cfg.APIKey) != "" }

// BaseImage 未生成过形象时使用的默认图片
func (r *Replicate) BaseImage() string { return r.cfg.BaseImageURL }

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

// Generate 返回生成图片的 URL；未配置或失败时返回基础形象与错误。
func (r *Replicate) Generate(ctx context.Context, prompt string) (string, error) {
	if !r.Configured() {
		return r.cfg.BaseImageURL, nil
	}
	url, err := r.generate(ctx, prompt)
	if err != nil {
		log.Printf("[Character] image generation failed, using base image: %v", err)
		return r.cfg.BaseImageURL, err
	}
	return url, nil
}

func (r *Replicate) generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"version": r.cfg.Version,
		"input": map[string]any{
			"prompt":      fmt.Sprintf("Anime girlfriend: %s, kawaii, vibrant", prompt),
			"num_outputs": 1,
			"width":       512,
			"height":      512,
		},
	}
	var created prediction
	if err := r.call(ctx, http.MethodPost, r.cfg.APIURL+"/predictions", payload, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", errors.New("missing prediction id")
	}

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for i := 0; i < r.cfg.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		var status prediction
		if err := r.call(ctx, http.MethodGet, r.cfg.APIURL+"/predictions/"+created.ID, nil, &status); err != nil {
			return "", err
		}
		switch status.Status {
		case "succeeded":
			return firstOutput(status.Output)
		case "failed", "canceled":
			return "", fmt.Errorf("%w: status %s", ErrGenerationFailed, status.Status)
		}
	}
	return "", fmt.Errorf("%w: gave up after %d polls", ErrGenerationFailed, r.cfg.MaxPolls)
}

// firstOutput output 可能是字符串数组，也可能是单个字符串。
func firstOutput(raw json.RawMessage) (string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0], nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	return "", fmt.Errorf("%w: empty output", ErrGenerationFailed)
}

func (r *Replicate) call(ctx context.Context, method, url string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+r.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("replicate API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
