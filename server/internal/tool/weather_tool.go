package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"bella/server/internal/config"
)

const (
	// WeatherToolName 天气工具名称
	WeatherToolName = "get_weather"

	weatherOffline = "No weather data, imagine a sunny day! ☀️"
	weatherDown    = "Weather API offline, let's dream of stars! 🌌"
)

var weatherTrigger = regexp.MustCompile(`(?i)\bweather\b`)

// WeatherTool 天气工具，没有密钥或请求失败时返回离线文案
type WeatherTool struct {
	cfg        config.WeatherConfig
	httpClient *http.Client
}

// NewWeatherTool 创建天气工具
func NewWeatherTool(cfg config.WeatherConfig) *WeatherTool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &WeatherTool{cfg: cfg, httpClient: &http.Client{}}
}

// GetDefinition 返回工具定义
func (t *WeatherTool) GetDefinition() ToolDefinition {
	return ToolDefinition{
		Type:        "function",
		Name:        WeatherToolName,
		Description: "Look up the current weather for a city.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"city": map[string]interface{}{"type": "string"},
			},
		},
	}
}

// Match 输入提到 weather 即触发
func (t *WeatherTool) Match(input string) (map[string]interface{}, bool) {
	if !weatherTrigger.MatchString(input) {
		return nil, false
	}
	return map[string]interface{}{"city": t.cfg.City}, true
}

// Execute 执行工具调用，失败不返回错误
func (t *WeatherTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return weatherOffline, nil
	}
	city, _ := args["city"].(string)
	if city == "" {
		city = t.cfg.City
	}
	desc, err := t.fetch(ctx, city)
	if err != nil || desc == "" {
		return weatherDown, nil
	}
	return fmt.Sprintf("It's %s, cozy date? ☕", desc), nil
}

func (t *WeatherTool) fetch(ctx context.Context, city string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", t.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.APIURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather API error (status %d)", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var result struct {
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	if len(result.Weather) == 0 {
		return "", nil
	}
	return result.Weather[0].Description, nil
}
