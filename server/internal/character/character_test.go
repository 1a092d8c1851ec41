package character

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bella/server/internal/config"
	"bella/server/internal/model"
)

func TestParseTraits(t *testing.T) {
	cases := []struct {
		prompt string
		want   model.PersonalityProfile
	}{
		{"a sassy cyberpunk hacker", model.PersonalityProfile{Tsundere: 0.8}},
		{"Sweet IDOL", model.PersonalityProfile{Flirty: 0.8}},
		{"gentle and sweet", model.PersonalityProfile{Flirty: 0.8, Supportive: 1.0}},
		{"a pirate", model.PersonalityProfile{}},
	}
	for _, c := range cases {
		if got := ParseTraits(c.prompt); got != c.want {
			t.Fatalf("%q: expected %+v, got %+v", c.prompt, c.want, got)
		}
	}
}

func imageConfig(url string) config.ImageConfig {
	cfg := config.Default().Image
	cfg.APIURL = url
	cfg.APIKey = "r8_test"
	cfg.PollInterval = time.Millisecond
	cfg.MaxPolls = 3
	return cfg
}

// TestReplicatePollsUntilSucceeded 验证创建任务后轮询，直到拿到输出。
func TestReplicatePollsUntilSucceeded(t *testing.T) {
	var polls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token r8_test" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/predictions":
			w.Write([]byte(`{"id":"p1","status":"starting"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/predictions/p1":
			if atomic.AddInt32(&polls, 1) < 2 {
				w.Write([]byte(`{"id":"p1","status":"processing"}`))
				return
			}
			w.Write([]byte(`{"id":"p1","status":"succeeded","output":["https://img.example/bella.png"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	url, err := NewReplicate(imageConfig(ts.URL)).Generate(context.Background(), "sassy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://img.example/bella.png" {
		t.Fatalf("unexpected url: %s", url)
	}
	if atomic.LoadInt32(&polls) != 2 {
		t.Fatalf("expected 2 polls, got %d", polls)
	}
}

// TestReplicateGivesUp 验证轮询次数有上限，超出后回到基础形象。
func TestReplicateGivesUp(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"id":"p2","status":"starting"}`))
			return
		}
		w.Write([]byte(`{"id":"p2","status":"processing"}`))
	}))
	defer ts.Close()

	cfg := imageConfig(ts.URL)
	url, err := NewReplicate(cfg).Generate(context.Background(), "idol")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if url != cfg.BaseImageURL {
		t.Fatalf("expected base image, got %s", url)
	}
}

func TestReplicateFailedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"id":"p3"}`))
			return
		}
		w.Write([]byte(`{"id":"p3","status":"failed","error":"nsfw"}`))
	}))
	defer ts.Close()

	cfg := imageConfig(ts.URL)
	url, err := NewReplicate(cfg).Generate(context.Background(), "idol")
	if err == nil || url != cfg.BaseImageURL {
		t.Fatalf("expected failure with base image, got %s %v", url, err)
	}
}

func TestReplicateUnconfigured(t *testing.T) {
	cfg := config.Default().Image
	url, err := NewReplicate(cfg).Generate(context.Background(), "idol")
	if err != nil || url != cfg.BaseImageURL {
		t.Fatalf("expected base image without error, got %s %v", url, err)
	}
}
