package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPTranslatorJoinsSegments(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tl") != "en" {
			t.Errorf("unexpected target: %s", r.URL.Query().Get("tl"))
		}
		if r.URL.Query().Get("q") != "Bonjour. Ça va?" {
			t.Errorf("unexpected query text: %s", r.URL.Query().Get("q"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[[["Hello. ","Bonjour. ",null,null,10],["How are you?","Ça va?",null,null,10]],null,"fr"]`))
	}))
	defer ts.Close()

	tr := NewHTTPTranslator(ts.URL, time.Second)
	res := tr.Translate(context.Background(), "Bonjour. Ça va?", "en")
	if res.Degraded {
		t.Fatalf("unexpected degraded result: %v", res.Err)
	}
	if res.Text != "Hello. How are you?" {
		t.Fatalf("unexpected translation: %q", res.Text)
	}
}

// TestHTTPTranslatorFailureReturnsOriginal 验证服务端错误时返回原文并标记降级。
func TestHTTPTranslatorFailureReturnsOriginal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	tr := NewHTTPTranslator(ts.URL, time.Second)
	res := tr.Translate(context.Background(), "Hola", "en")
	if !res.Degraded || res.Err == nil {
		t.Fatalf("expected degraded result with error")
	}
	if res.Text != "Hola" {
		t.Fatalf("expected original text, got %q", res.Text)
	}
}

func TestHTTPTranslatorMalformedPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer ts.Close()

	res := NewHTTPTranslator(ts.URL, time.Second).Translate(context.Background(), "Hola", "en")
	if !res.Degraded || res.Text != "Hola" {
		t.Fatalf("expected degraded passthrough, got %+v", res)
	}
}

// TestIdentityRoundTrip 验证 L→中轴→L 的往返在恒等翻译下保持原文。
func TestIdentityRoundTrip(t *testing.T) {
	var tr Translator = Identity{}
	original := "Je t'aime beaucoup"
	toPivot := tr.Translate(context.Background(), original, "en")
	back := tr.Translate(context.Background(), toPivot.Text, "fr")
	if back.Text != original || back.Degraded || toPivot.Degraded {
		t.Fatalf("round trip mismatch: %q", back.Text)
	}
}
