package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bella/server/internal/api"
	"bella/server/internal/character"
	"bella/server/internal/config"
	"bella/server/internal/gateway"
	"bella/server/internal/lang"
	"bella/server/internal/llm"
	"bella/server/internal/orchestrator"
	"bella/server/internal/sentiment"
	"bella/server/internal/session"
	"bella/server/internal/social"
	"bella/server/internal/store"
	"bella/server/internal/timeline"
	"bella/server/internal/tool"
	"bella/server/internal/translate"
	"bella/server/internal/voice"
)

func main() {
	// 密钥只从环境变量或 .env 读取，配置文件里只放非敏感项
	configPath := flag.String("config", "server/configs/bella.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Logging.Debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	records, err := store.NewByEngine(cfg.Store)
	if err != nil {
		log.Fatalf("init store: %v", err)
	}
	defer records.Close()

	candidates, err := llm.NewProviders(cfg.Providers)
	if err != nil {
		log.Fatalf("init providers: %v", err)
	}
	corpus, err := llm.LoadCorpus(cfg.Mock.CorpusPath)
	if err != nil {
		log.Printf("⚠️  mock corpus unavailable, using built-in replies: %v", err)
	}
	gw := llm.NewGateway(candidates, llm.NewMockClient(corpus), cfg.Providers.Timeout)
	log.Printf("provider chain: %v", gw.Names())

	var translator translate.Translator = translate.Identity{}
	if cfg.Translation.Enabled {
		translator = translate.NewHTTPTranslator(cfg.Translation.APIURL, cfg.Translation.Timeout)
	}
	tts := voice.NewElevenLabs(cfg.Voice)
	images := character.NewReplicate(cfg.Image)
	trends := social.NewXSource(cfg.Social)

	tl := timeline.NewInMemoryStore()
	sessions := session.NewInMemoryStore(records, images.BaseImage())
	hub := gateway.NewHub(gateway.HubConfig{
		WriteTimeout: cfg.Server.WriteTimeout,
		PingInterval: cfg.Server.PingInterval,
	}, nil)

	orch := orchestrator.New(orchestrator.Deps{
		Detector:      lang.NewDetector(cfg.Language.MinLength, cfg.Language.MinConfidence),
		Translator:    translator,
		Scorer:        sentiment.AFINN{},
		Completer:     gw,
		Voice:         tts,
		Social:        trends,
		Images:        images,
		Records:       records,
		Timeline:      tl,
		Sessions:      sessions,
		Notifier:      hub,
		ExtraTools:    []tool.ToolExecutor{tool.NewWeatherTool(cfg.Weather)},
		HistoryWindow: cfg.Session.HistoryWindow,
		ExportLimit:   cfg.Session.ExportLimit,
	})
	hub.SetHandler(orch)

	assets := map[string]string{
		"baseImage":     cfg.Paths.BaseImage,
		"fallbackVoice": cfg.Paths.FallbackVoice,
		"mockCorpus":    cfg.Mock.CorpusPath,
	}
	for name, path := range assets {
		if _, err := os.Stat(path); err != nil {
			log.Printf("⚠️  asset %s missing at %s", name, path)
		}
	}

	server := api.NewServer(cfg, sessions, tl, orch, hub, api.Health{
		Primary:   gw.Primary(),
		Providers: gw.Names(),
		APIStatus: map[string]bool{
			"grok":       cfg.Providers.Grok.APIKey != "",
			"openai":     cfg.Providers.OpenAI.APIKey != "",
			"anthropic":  cfg.Providers.Anthropic.APIKey != "",
			"replicate":  images.Configured(),
			"elevenlabs": tts.Configured(),
			"x":          trends.Configured(),
			"weather":    cfg.Weather.APIKey != "",
		},
		Capabilities: map[string]bool{
			"translation": cfg.Translation.Enabled,
			"voice":       tts.Configured(),
			"image":       images.Configured(),
			"social":      trends.Configured(),
		},
		Assets: assets,
	})

	httpServer := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     server.Routes(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout 不设置：websocket 长连接由 Hub 自己维护写超时
	}

	go func() {
		log.Printf("🌸 bella server listening on %s (primary=%s)", httpServer.Addr, gw.Primary())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Close()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
