package api

import (
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bella/server/internal/config"
	"bella/server/internal/export"
	"bella/server/internal/gateway"
	"bella/server/internal/model"
	"bella/server/internal/orchestrator"
	"bella/server/internal/session"
	"bella/server/internal/timeline"
)

// DefaultSessionID 旧版接口（/chat 等）共用的会话
const DefaultSessionID = "default"

// Health 描述 /health 上报的静态信息，由启动流程填充
type Health struct {
	Primary      string
	Providers    []string
	APIStatus    map[string]bool
	Capabilities map[string]bool
	// Assets 资源名到文件路径，请求时检查是否存在
	Assets map[string]string
}

type Server struct {
	config       *config.Config
	sessions     session.Store
	timeline     timeline.Store
	orchestrator *orchestrator.Orchestrator
	hub          *gateway.Hub
	health       Health
	startedAt    time.Time

	// WebSocket upgrader
	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, sessions session.Store, tl timeline.Store, orch *orchestrator.Orchestrator, hub *gateway.Hub, health Health) *Server {
	return &Server{
		config:       cfg,
		sessions:     sessions,
		timeline:     tl,
		orchestrator: orch,
		hub:          hub,
		health:       health,
		startedAt:    time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 开发期允许本地跨域，生产环境应改为白名单
				origin := r.Header.Get("Origin")
				return origin == "" || isLocalOrigin(origin)
			},
		},
	}
}

func (s *Server) Routes() http.Handler {
	// Gin 统一承载中间件与路由
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), s.corsMiddleware())

	engine.GET("/health", s.handleHealth)
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sessions := engine.Group("/api/sessions")
	sessions.POST("", s.handleCreateSession)
	sessions.GET("/:id", s.withSession(s.handleGetSession))
	sessions.DELETE("/:id", s.handleDeleteSession)
	sessions.POST("/:id/chat", s.withSession(s.handleChat))
	sessions.POST("/:id/character", s.withSession(s.handleCharacter))
	sessions.POST("/:id/export", s.withSession(s.handleExport))
	sessions.GET("/:id/quests", s.withSession(s.handleQuests))
	sessions.GET("/:id/proactive", s.withSession(s.handleProactive))
	sessions.GET("/:id/stream", s.withSession(s.handleSessionStream))

	// 旧版客户端使用的无会话接口
	engine.POST("/chat", s.withDefaultSession(s.handleChat))
	engine.POST("/update-character", s.withDefaultSession(s.handleCharacter))
	engine.POST("/export", s.withDefaultSession(s.handleExport))
	engine.GET("/quests", s.withDefaultSession(s.handleQuests))

	if s.config != nil && s.config.Paths.Static != "" {
		if info, err := os.Stat(s.config.Paths.Static); err == nil && info.IsDir() {
			engine.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.config.Paths.Static))))
		}
	}
	return engine
}

type sessionHandler func(c *gin.Context, sess *session.Session)

// withSession 按路径参数加载会话，不存在时返回 404
func (s *Server) withSession(h sessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		h(c, sess)
	}
}

func (s *Server) withDefaultSession(h sessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.sessions.GetOrCreate(c.Request.Context(), DefaultSessionID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		h(c, sess)
	}
}

// writeError 把内部错误映射为 HTTP 状态码，只返回简短描述
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, orchestrator.ErrInvalidInput), errors.Is(err, export.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("[API] ❌ request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// handleHealth 返回提供商、能力与资源状态
func (s *Server) handleHealth(c *gin.Context) {
	assets := make(map[string]bool, len(s.health.Assets))
	for name, path := range s.health.Assets {
		_, err := os.Stat(path)
		assets[name] = err == nil
	}

	questsActive := 0
	if sess, err := s.sessions.Get(c.Request.Context(), DefaultSessionID); err == nil {
		questsActive = len(sess.ActiveQuests())
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"apiStatus":    s.health.APIStatus,
		"primaryAi":    s.health.Primary,
		"providers":    s.health.Providers,
		"capabilities": s.health.Capabilities,
		"assets":       assets,
		"uptime":       time.Since(s.startedAt).Seconds(),
		"questsActive": questsActive,
		"sessions":     s.sessions.Count(),
	})
}

// handleHealthz 返回服务健康状态。
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleCreateSession 创建新会话，返回初始快照
func (s *Server) handleCreateSession(c *gin.Context) {
	sess, err := s.sessions.Create(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.CreateSessionResponse{
		SessionID: sess.ID,
		State:     sess.Snapshot(),
	})
}

func (s *Server) handleGetSession(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, sess.Snapshot())
}

// handleDeleteSession 结束会话并丢弃内存中的历史，持久化记录保留
func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.sessions.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	if d, ok := s.timeline.(interface{ Drop(string) }); ok {
		d.Drop(id)
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleChat(c *gin.Context, sess *session.Session) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	resp, err := s.orchestrator.RunTurn(c.Request.Context(), sess, req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCharacter(c *gin.Context, sess *session.Session) {
	var req model.CharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	resp, err := s.orchestrator.UpdateCharacter(c.Request.Context(), sess, req.Prompt)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExport(c *gin.Context, sess *session.Session) {
	var req model.ExportRequest
	// 空请求体按 json 导出
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	resp, err := s.orchestrator.Export(c.Request.Context(), sess, req.Format)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleQuests(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, gin.H{"quests": sess.ActiveQuests()})
}

func (s *Server) handleProactive(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, gin.H{"message": s.orchestrator.Proactive(sess)})
}

// handleSessionStream 升级为 WebSocket 并交给 Hub，连接的生命周期由 Hub 管理
func (s *Server) handleSessionStream(c *gin.Context, sess *session.Session) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[API] ❌ Failed to upgrade websocket: %v", err)
		return
	}
	s.hub.Attach(sess.ID, conn)
	log.Printf("[API] ✅ side channel attached: session=%s observers=%d", sess.ID, s.hub.Observers(sess.ID))
}

func isLocalOrigin(origin string) bool {
	return origin == "http://localhost:5173" || origin == "http://127.0.0.1:5173" ||
		origin == "http://localhost:8081" || origin == "http://127.0.0.1:8081"
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		// 开发期：允许本地前端；线上应改为白名单或同源。
		if isLocalOrigin(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
