package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/providers/llm"
	"github.com/sandevgo/tuskmem/internal/providers/mcp"
	"github.com/sandevgo/tuskmem/internal/providers/tools"
	"github.com/sandevgo/tuskmem/internal/service/agent"
	"github.com/sandevgo/tuskmem/internal/service/command"
	"github.com/sandevgo/tuskmem/internal/service/memory"
	"github.com/sandevgo/tuskmem/internal/service/scheduler"
	"github.com/sandevgo/tuskmem/internal/storage/sqlite"
	"github.com/sandevgo/tuskmem/internal/transport/telegram"
	"github.com/sandevgo/tuskmem/pkg/srv"
)

// App holds the wired components shared by the commands.
type App struct {
	Config    *config.AppConfig
	Agent     *agent.Agent
	Router    *command.Router
	Memories  *sqlite.CachedMemoryStore
	Scheduler *scheduler.Scheduler

	services []srv.Service
}

// Services returns the lifecycle services in start order; shutdown runs in
// reverse so the database closes after the scheduler drained.
func (a *App) Services() []srv.Service {
	return a.services
}

func NewApp(ctx context.Context) (*App, error) {
	appCfg := config.NewAppConfig(ctx)

	if err := os.MkdirAll(appCfg.GetRuntimePath(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	chatCfg, err := config.LoadChatConfig(ctx, appCfg.GetProfilePath(), env.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to load chat config: %w", err)
	}

	// Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services := []srv.Service{srv.NewCleanup(db.Close)}

	messages := sqlite.NewMessagesRepo(db)
	memories, err := sqlite.NewCachedMemoryStore(sqlite.NewMemoriesRepo(db), appCfg.MemoryCacheSize)
	if err != nil {
		return nil, err
	}
	services = append(services, srv.NewCleanup(func() error {
		memories.Close()
		return nil
	}))

	// LLM
	generator, err := llm.NewProvider(ctx, appCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}

	// Tools
	registry := tools.NewRegistry()
	workspace := tools.NewWorkspace(filepath.Join(appCfg.GetRuntimePath(), "workspace"))
	if err := tools.RegisterBuiltins(registry, tools.NewFetch(), workspace); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	toolset := mcp.NewToolset(mcp.NewFileStorage(appCfg.GetMCPConfigPath()), mcp.NewPool(), registry)
	services = append(services, toolset)

	// Memory extraction
	extractor := memory.NewExtractor(messages, memories, generator, nil)
	sched := scheduler.New(extractor,
		scheduler.WithJournal(sqlite.NewJobsRepo(db)),
		scheduler.WithTimeout(appCfg.ExtractionTimeout),
	)
	services = append(services, sched)

	turns := agent.NewTurnController(generator, registry, memories, sched,
		agent.WithMaxToolRounds(appCfg.MaxToolRounds),
		agent.WithParallelism(appCfg.ToolParallelism),
	)
	ag := agent.NewAgent(turns, messages, chatCfg, appCfg.GetContextWindowSize())

	router := command.New(command.NewCommands(appCfg, chatCfg.UserID, memories, sched, registry))

	return &App{
		Config:    appCfg,
		Agent:     ag,
		Router:    router,
		Memories:  memories,
		Scheduler: sched,
		services:  services,
	}, nil
}

// WithTelegram appends the bot when it is enabled in configuration.
func (a *App) WithTelegram(ctx context.Context) error {
	if !a.Config.IsTelegramSelected() {
		return nil
	}
	bot, err := telegram.NewBot(ctx, config.NewTelegramConfig(ctx), a.Agent, a.Router)
	if err != nil {
		return err
	}
	a.services = append(a.services, bot)
	return nil
}
