package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/arjun/scribe/internal/agent"
	"github.com/arjun/scribe/internal/content"
	"github.com/arjun/scribe/internal/gateway"
	"github.com/arjun/scribe/internal/governance"
	"github.com/arjun/scribe/internal/observability"
	"github.com/arjun/scribe/internal/store"
	"github.com/arjun/scribe/pkg/config"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	cfg := config.LoadConfig("config.yaml")

	logger := observability.NewLogger()

	// Intake policy: config-driven upload hygiene, default allow-all.
	policy := governance.NewDefaultPolicyEngine()
	policy.MaxFileBytes = cfg.Intake.MaxFileBytes
	for _, pattern := range cfg.Intake.DeniedNames {
		if err := policy.DenyName(pattern); err != nil {
			log.Fatalf("invalid denied_names pattern %q: %v", pattern, err)
		}
	}

	runlog, err := store.NewRunLog(cfg.Memory.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer runlog.Close()

	normalizer := content.NewNormalizer(cfg.Generation.ContentBudget, cfg.Intake.MaxImageBytes)

	// Initialize LLM (using default enabled provider)
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var model llms.Model
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}
	if err != nil {
		log.Fatal(err)
	}

	planner := agent.NewPlanner(model, logger)
	executor := agent.NewExecutor(model, cfg.Generation.MaxTokens, cfg.Generation.Temperature, logger)

	sessions := gateway.NewSessionManager(cfg.SessionTTL(), func(sessionID string, sink agent.EventSink) *agent.Engine {
		return agent.NewEngine(sessionID, planner, executor, sink, logger, runlog)
	}, runlog)

	server := gateway.NewServer(gateway.ServerConfig{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		EnableCORS: cfg.Server.EnableCORS,
	}, sessions, normalizer, policy, logger, runlog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessions.StartReaper(ctx)

	// Live Resource Dashboard (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				logger.LogHeartbeat()
			}
		}
	}()

	go func() {
		if err := server.Start(); err != nil {
			log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
			stop()
		}
	}()

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	observability.CleanupTerminal()

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] CORE DE-INITIALIZED. GOODBYE.\033[0m")
}
