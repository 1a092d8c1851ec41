package lang

import (
	"testing"

	"bella/server/internal/model"
)

// TestDetectShortInputDefaultsToPivot 验证过短输入直接按中轴语言处理。
func TestDetectShortInputDefaultsToPivot(t *testing.T) {
	d := NewDetector(3, 0.2)
	for _, in := range []string{"", "a", "ok"} {
		if got := d.Detect(in); got != model.PivotLanguage {
			t.Fatalf("input %q: expected pivot, got %+v", in, got)
		}
	}
}

// TestDetectEnglishSentence 验证常规英文句子被识别为 eng。
func TestDetectEnglishSentence(t *testing.T) {
	d := NewDetector(3, 0.2)
	got := d.Detect("I really enjoy spending the evening talking with you about books and music and everything else.")
	if !got.IsPivot() {
		t.Fatalf("expected english, got %+v", got)
	}
}

// TestDetectFrenchSentence 验证长法语句子被识别为 fra/fr。
func TestDetectFrenchSentence(t *testing.T) {
	d := NewDetector(3, 0.2)
	got := d.Detect("Bonjour, je suis très content de te parler ce soir, nous allons passer une excellente soirée ensemble.")
	if got.Code != "fra" || got.Tag != "fr" {
		t.Fatalf("expected fra/fr, got %+v", got)
	}
}

// TestDetectHighConfidenceThresholdDefaultsToPivot 验证置信度门槛不可达时回落到中轴语言。
func TestDetectHighConfidenceThresholdDefaultsToPivot(t *testing.T) {
	d := NewDetector(3, 1.1)
	got := d.Detect("Bonjour, je suis très content de te parler ce soir.")
	if got != model.PivotLanguage {
		t.Fatalf("expected pivot, got %+v", got)
	}
}

func TestFixedDetector(t *testing.T) {
	fr := model.Language{Code: "fra", Tag: "fr"}
	if got := Fixed(fr).Detect("anything"); got != fr {
		t.Fatalf("expected %+v, got %+v", fr, got)
	}
}
