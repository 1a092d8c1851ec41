package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bella/server/internal/config"
	"bella/server/internal/gateway"
	"bella/server/internal/llm"
	"bella/server/internal/model"
	"bella/server/internal/orchestrator"
	"bella/server/internal/session"
	"bella/server/internal/store"
	"bella/server/internal/timeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	srv      *httptest.Server
	sessions *session.InMemoryStore
	hub      *gateway.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.Static = ""

	records := store.NewMemoryStore()
	tl := timeline.NewInMemoryStore()
	sessions := session.NewInMemoryStore(records, "/base-bella.png")
	hub := gateway.NewHub(gateway.HubConfig{}, nil)
	gw := llm.NewGateway(nil, llm.NewMockClient(nil), time.Second)

	orch := orchestrator.New(orchestrator.Deps{
		Completer: gw,
		Records:   records,
		Timeline:  tl,
		Sessions:  sessions,
		Notifier:  hub,
	})
	hub.SetHandler(orch)

	server := NewServer(&cfg, sessions, tl, orch, hub, Health{
		Primary:   gw.Primary(),
		Providers: gw.Names(),
		Assets:    map[string]string{"baseImage": "does-not-exist.png"},
	})
	ts := httptest.NewServer(server.Routes())
	t.Cleanup(func() {
		ts.Close()
		hub.Close()
	})
	return &testEnv{srv: ts, sessions: sessions, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	var created model.CreateSessionResponse
	if code := e.do(t, http.MethodPost, "/api/sessions", nil, &created); code != http.StatusOK {
		t.Fatalf("create session status %d", code)
	}
	if created.SessionID == "" || len(created.State.Quests) != 1 {
		t.Fatalf("unexpected session: %+v", created)
	}
	return created.SessionID
}

// TestChatFlow 验证创建会话后聊天，好感度增长且任务完成后从列表消失。
func TestChatFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	var resp model.ChatResponse
	code := env.do(t, http.MethodPost, "/api/sessions/"+id+"/chat", map[string]any{
		"input": "I love chatting with you", "questId": 1,
	}, &resp)
	if code != http.StatusOK {
		t.Fatalf("chat status %d", code)
	}
	if resp.Provider != llm.MockProviderName || resp.Affinity < 1 || len(resp.Quests) != 0 {
		t.Fatalf("unexpected chat response: %+v", resp)
	}

	var quests struct {
		Quests []model.Quest `json:"quests"`
	}
	env.do(t, http.MethodGet, "/api/sessions/"+id+"/quests", nil, &quests)
	if len(quests.Quests) != 0 {
		t.Fatalf("completed quest still listed: %+v", quests.Quests)
	}
}

func TestChatValidation(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	var errResp map[string]string
	if code := env.do(t, http.MethodPost, "/api/sessions/"+id+"/chat", map[string]any{"input": ""}, &errResp); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if code := env.do(t, http.MethodPost, "/api/sessions/missing/chat", map[string]any{"input": "hi"}, &errResp); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if code := env.do(t, http.MethodPost, "/api/sessions/"+id+"/export", map[string]any{"format": "docx"}, &errResp); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported format, got %d", code)
	}
}

func TestLegacyRoutesUseDefaultSession(t *testing.T) {
	env := newTestEnv(t)

	var resp model.ChatResponse
	if code := env.do(t, http.MethodPost, "/chat", map[string]any{"input": "hello"}, &resp); code != http.StatusOK {
		t.Fatalf("legacy chat status %d", code)
	}
	if _, err := env.sessions.Get(context.Background(), DefaultSessionID); err != nil {
		t.Fatalf("default session not created: %v", err)
	}

	var character model.CharacterResponse
	env.do(t, http.MethodPost, "/update-character", map[string]any{"prompt": "sweet idol"}, &character)
	if character.UpdatedPersonality == nil || character.UpdatedPersonality.Flirty != 0.8 {
		t.Fatalf("unexpected character response: %+v", character)
	}

	var exported model.ExportResponse
	if code := env.do(t, http.MethodPost, "/export", map[string]any{"format": "pdf"}, &exported); code != http.StatusOK {
		t.Fatalf("legacy export status %d", code)
	}
	if exported.Format != model.ExportPDF || exported.Data == "" {
		t.Fatalf("unexpected export: %+v", exported)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	var health map[string]any
	if code := env.do(t, http.MethodGet, "/health", nil, &health); code != http.StatusOK {
		t.Fatalf("health status %d", code)
	}
	if health["primaryAi"] != llm.MockProviderName {
		t.Fatalf("unexpected primary: %v", health["primaryAi"])
	}
	assets := health["assets"].(map[string]any)
	if assets["baseImage"] != false {
		t.Fatalf("expected missing asset, got %v", assets)
	}

	resp, err := http.Get(env.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", resp.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	if code := env.do(t, http.MethodDelete, "/api/sessions/"+id, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete status %d", code)
	}
	if code := env.do(t, http.MethodDelete, "/api/sessions/"+id, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", code)
	}
}

// TestStreamReceivesUpdates 验证旁路通道收到 update 事件，并能处理 start_quest。
func TestStreamReceivesUpdates(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/sessions/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Observers(id) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	env.do(t, http.MethodPost, "/api/sessions/"+id+"/chat", map[string]any{"input": "hi"}, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type gateway.EventType `json:"type"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if msg.Type != gateway.EventTypeUpdate {
		t.Fatalf("expected update, got %s", msg.Type)
	}

	if err := conn.WriteJSON(map[string]any{"type": gateway.EventTypeStartQuest, "quest_id": 1}); err != nil {
		t.Fatalf("write start_quest: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read quest_update: %v", err)
	}
	if msg.Type != gateway.EventTypeQuestUpdate {
		t.Fatalf("expected quest_update, got %s", msg.Type)
	}
}
