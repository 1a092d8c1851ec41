package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bella/server/internal/config"
)

func testConfig(url string) config.VoiceConfig {
	cfg := config.Default().Voice
	cfg.APIURL = url
	cfg.APIKey = "test-key"
	cfg.Timeout = time.Second
	return cfg
}

// TestSynthesizeUnconfigured 验证未配置时直接返回兜底音频且不发请求。
func TestSynthesizeUnconfigured(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.APIKey = ""
	res := NewElevenLabs(cfg).Synthesize(context.Background(), "hi", "happy")
	if !res.Fallback || res.AudioRef != cfg.FallbackURL {
		t.Fatalf("expected fallback, got %+v", res)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no network call")
	}
}

func TestSynthesizeSendsPitch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if !strings.HasSuffix(r.URL.Path, "/text-to-speech/21m00Tcm4TlvDq8ikWAM") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			VoiceSettings struct {
				Pitch float64 `json:"pitch"`
			} `json:"voice_settings"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.VoiceSettings.Pitch != 0.8 {
			t.Errorf("expected pitch 0.8, got %v", body.VoiceSettings.Pitch)
		}
		w.Write([]byte("mp3"))
	}))
	defer ts.Close()

	res := NewElevenLabs(testConfig(ts.URL)).Synthesize(context.Background(), "there there", "caring")
	if res.Fallback {
		t.Fatalf("unexpected fallback: %v", res.Err)
	}
	if res.AudioRef != "data:audio/mpeg;base64,bXAz" {
		t.Fatalf("unexpected audio ref: %s", res.AudioRef)
	}
}

// TestSynthesizeFailureFallsBack 验证接口报错时返回兜底音频。
func TestSynthesizeFailureFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	res := NewElevenLabs(cfg).Synthesize(context.Background(), "hi", "happy")
	if !res.Fallback || res.Err == nil || res.AudioRef != cfg.FallbackURL {
		t.Fatalf("expected fallback with error, got %+v", res)
	}
}

func TestPitchFor(t *testing.T) {
	cases := map[string]float64{
		"excited": 1.2,
		"playful": 1.2,
		"caring":  0.8,
		"happy":   1.0,
		"neutral": 1.0,
	}
	for emotion, want := range cases {
		if got := PitchFor(emotion); got != want {
			t.Fatalf("%s: expected %v, got %v", emotion, want, got)
		}
	}
}
