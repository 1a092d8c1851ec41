package export

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bella/server/internal/model"
)

func sampleRows() []model.ConversationRecord {
	return []model.ConversationRecord{
		{ID: 2, SessionID: "s1", UserInput: "Je t'aime", Reply: "Moi aussi 💕", Provider: "mock", Language: "fra", CreatedAt: time.Date(2025, 1, 1, 12, 1, 0, 0, time.UTC)},
		{ID: 1, SessionID: "s1", UserInput: "hi", Reply: "hello", Provider: "grok", Language: "eng", CreatedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func TestEncodeJSON(t *testing.T) {
	data, err := Encode(model.ExportJSON, sampleRows())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(rows) != 2 || rows[0]["user_input"] != "Je t'aime" || rows[0]["lang"] != "fra" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestEncodeJSONEmpty(t *testing.T) {
	data, _ := Encode("", nil)
	raw, _ := base64.StdEncoding.DecodeString(data)
	if string(raw) != "[]" {
		t.Fatalf("expected empty array, got %s", raw)
	}
}

// TestEncodePDF 验证 PDF 输出以文件头开始，且非 cp1252 字符不会导致失败。
func TestEncodePDF(t *testing.T) {
	data, err := Encode(model.ExportPDF, sampleRows())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF-")) {
		t.Fatalf("expected pdf header, got %q", raw[:8])
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	if _, err := Encode("docx", nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
