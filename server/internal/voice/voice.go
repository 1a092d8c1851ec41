package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"bella/server/internal/config"
	"bella/server/internal/model"
)

// Result 语音合成结果。Fallback 为 true 时 AudioRef 是静态兜底音频。
type Result struct {
	AudioRef string
	Fallback bool
	Err      error
}

// Synthesizer 语音合成能力，失败永远不中断对话。
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, emotion string) Result
	Configured() bool
}

// PitchFor 根据情绪给出音高：兴奋/俏皮升调，关怀降调。
func PitchFor(emotion string) float64 {
	switch emotion {
	case model.UserEmotionExcited, string(model.EmotionPlayful):
		return 1.2
	case string(model.EmotionCaring):
		return 0.8
	default:
		return 1.0
	}
}

// ElevenLabs 调用 ElevenLabs text-to-speech 接口。
type ElevenLabs struct {
	cfg        config.VoiceConfig
	httpClient *http.Client
}

// NewElevenLabs 创建语音合成器
func NewElevenLabs(cfg config.VoiceConfig) *ElevenLabs {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &ElevenLabs{cfg: cfg, httpClient: &http.Client{}}
}

func (e *ElevenLabs) Configured() bool { return strings.TrimSpace(e.cfg.APIKey) != "" }

// Synthesize 未配置时直接返回兜底音频，不发起网络请求。
func (e *ElevenLabs) Synthesize(ctx context.Context, text string, emotion string) Result {
	if !e.Configured() {
		return Result{AudioRef: e.cfg.FallbackURL, Fallback: true}
	}
	audio, err := e.do(ctx, text, PitchFor(emotion))
	if err != nil {
		log.Printf("[Voice] synthesis failed, using fallback: %v", err)
		return Result{AudioRef: e.cfg.FallbackURL, Fallback: true, Err: err}
	}
	return Result{AudioRef: "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio)}
}

func (e *ElevenLabs) do(ctx context.Context, text string, pitch float64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	payload := map[string]any{
		"text": text,
		"voice_settings": map[string]any{
			"stability":        e.cfg.Stability,
			"similarity_boost": e.cfg.SimilarityBoost,
			"pitch":            pitch,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", e.cfg.APIURL, e.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("voice API error (status %d)", resp.StatusCode)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio")
	}
	return audio, nil
}
