package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bella/server/internal/metrics"
)

var (
	// ErrAllProvidersFailed 回退链全部失败
	ErrAllProvidersFailed = errors.New("all providers failed")
	// ErrNoProviders 回退链为空
	ErrNoProviders = errors.New("no providers in chain")
)

// Completion 是网关返回的统一回复
type Completion struct {
	Text     string
	Provider string
	Attempts int
}

// ProviderError 单个提供商失败
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AllProvidersFailedError 记录每个提供商的失败原因
type AllProvidersFailedError struct {
	Failures []*ProviderError
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("%s: %s", ErrAllProvidersFailed, strings.Join(parts, "; "))
}

func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Gateway 按优先级线性回退：失败就换下一个，不重试同一个，也不并发竞速。
type Gateway struct {
	chain   []Provider
	offline Provider
	timeout time.Duration
	logger  *log.Logger
}

// NewGateway 过滤出有凭证的提供商；一个都没有时链路只包含 offline。
func NewGateway(candidates []Provider, offline Provider, timeout time.Duration) *Gateway {
	chain := make([]Provider, 0, len(candidates))
	for _, p := range candidates {
		if p != nil && p.Available() {
			chain = append(chain, p)
		}
	}
	if len(chain) == 0 && offline != nil {
		chain = append(chain, offline)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{chain: chain, offline: offline, timeout: timeout, logger: log.Default()}
}

// Names 返回回退链中的提供商（按顺序）
func (g *Gateway) Names() []string {
	names := make([]string, 0, len(g.chain))
	for _, p := range g.chain {
		names = append(names, p.Name())
	}
	return names
}

// Primary 返回首选提供商
func (g *Gateway) Primary() string {
	if len(g.chain) == 0 {
		return ""
	}
	return g.chain[0].Name()
}

// Complete 依次尝试回退链，返回第一个成功的回复。
func (g *Gateway) Complete(ctx context.Context, prompt string) (Completion, error) {
	if len(g.chain) == 0 {
		return Completion{}, ErrNoProviders
	}

	failed := &AllProvidersFailedError{}
	for i, p := range g.chain {
		// offline 只读本地语料，请求已取消也照常应答
		if err := ctx.Err(); err != nil && p != g.offline {
			failed.Failures = append(failed.Failures, &ProviderError{Provider: p.Name(), Err: err})
			break
		}

		text, err := g.attempt(ctx, p, prompt)
		if err == nil {
			return Completion{Text: text, Provider: p.Name(), Attempts: i + 1}, nil
		}
		g.logger.Printf("[Gateway] provider %s failed (attempt %d/%d): %v", p.Name(), i+1, len(g.chain), err)
		failed.Failures = append(failed.Failures, &ProviderError{Provider: p.Name(), Err: err})
	}
	return Completion{}, failed
}

func (g *Gateway) attempt(ctx context.Context, p Provider, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := p.Complete(ctx, prompt)
	metrics.ProviderLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(p.Name(), "error").Inc()
		return "", err
	}
	metrics.ProviderRequestsTotal.WithLabelValues(p.Name(), "ok").Inc()
	return text, nil
}
