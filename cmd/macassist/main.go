// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/aman-senpai/macassist/internal/assistant"
	"github.com/aman-senpai/macassist/internal/command"
	"github.com/aman-senpai/macassist/internal/config"
	"github.com/aman-senpai/macassist/internal/history"
	"github.com/aman-senpai/macassist/internal/logging"
	"github.com/aman-senpai/macassist/internal/orchestrator"
	"github.com/aman-senpai/macassist/internal/singleton"
	"github.com/aman-senpai/macassist/internal/tools"
)

const appVersion = "1.0.0"

const defaultSystemPrompt = "You are macassist, a helpful assistant running on the user's machine. " +
	"Use the available tools when they help you answer accurately, and keep answers concise."

var (
	settingsPath = flag.String("config", "", "Path to the JSON settings file (default: ~/.macassist/config.json)")
	provider     = flag.String("provider", "", "LLM provider: openai, gemini, ollama or anthropic")
	model        = flag.String("model", "", "Model to use for the selected provider")
	endpoint     = flag.String("endpoint", "", "Custom endpoint for the selected provider")
	logLevel     = flag.String("log-level", "", "Logging level: debug, info, warn, error, fatal")
	logFile      = flag.String("log-file", "", "Log file path (default: stderr)")
	maxSteps     = flag.Int("max-steps", 0, "Maximum model calls per user turn (default: 5)")
	mcpConfig    = flag.String("mcp-config", "", "Path to an mcpServers JSON file with extra tools")
	dbPath       = flag.String("db-path", "", "Path to the SQLite history database")
	noHistory    = flag.Bool("no-history", false, "Disable conversation history persistence")
	systemPrompt = flag.String("system", "", "Override the system prompt")
	version      = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	if *version {
		log.Printf("macassist version %s", appVersion)
		os.Exit(0)
	}

	// Load configuration: defaults -> settings file -> environment -> flags.
	cfg := loadConfig()

	logger := logging.New(logging.Options{Level: cfg.Logging.Level, FilePath: cfg.Logging.FilePath})
	logging.SetDefaultLogger(logger)

	ctx := context.Background()

	app, err := createApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to start: %v", err)
	}
	defer app.Close()

	app.runREPL(ctx)
}

// loadConfig assembles the layered configuration and validates it.
func loadConfig() *config.Config {
	_ = godotenv.Load()

	cfg := config.DefaultConfig()

	path := *settingsPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + "/.macassist/config.json"
		}
	}
	if path != "" {
		if err := config.LoadFile(cfg, path); err != nil {
			log.Fatalf("Invalid settings file: %v", err)
		}
	}
	if err := config.FromEnv(cfg); err != nil {
		log.Fatalf("Invalid environment configuration: %v", err)
	}
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// applyFlags applies command line flags on top of the loaded configuration.
func applyFlags(cfg *config.Config) {
	if *provider != "" {
		cfg.LLM.Provider = *provider
	}
	if *model != "" || *endpoint != "" {
		pc := cfg.Active()
		if *model != "" {
			pc.Model = *model
		}
		if *endpoint != "" {
			pc.Endpoint = *endpoint
		}
		setActive(cfg, pc)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Logging.FilePath = *logFile
	}
	if *maxSteps > 0 {
		cfg.LLM.MaxToolIterations = *maxSteps
	}
	if *mcpConfig != "" {
		cfg.Tools.MCPConfigFilePath = *mcpConfig
	}
	if *dbPath != "" {
		cfg.History.DBPath = *dbPath
	}
	if *noHistory {
		cfg.History.Enabled = false
	}
}

func setActive(cfg *config.Config, pc config.ProviderConfig) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case config.ProviderGemini:
		cfg.LLM.Gemini = pc
	case config.ProviderOllama:
		cfg.LLM.Ollama = pc
	case config.ProviderAnthropic:
		cfg.LLM.Anthropic = pc
	default:
		cfg.LLM.OpenAI = pc
	}
}

// application holds the wired components for one run.
type application struct {
	cfg            *config.Config
	logger         *logging.Logger
	svc            *orchestrator.Service
	asst           *assistant.Assistant
	store          *history.Store
	lock           *singleton.Lock
	mcpTools       *tools.MCPTools
	conversationID string
	persisted      int // committed messages already written to the store
}

func createApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger}

	// History is optional; losing it degrades to an in-memory session.
	if cfg.History.Enabled {
		lock, acquired, err := singleton.TryAcquire(cfg.History.DBPath)
		if err != nil {
			return nil, err
		}
		if !acquired {
			logger.Warnf("Another macassist instance holds the history database; continuing without persistence")
		} else {
			app.lock = lock
			store, err := history.NewStore(cfg.History.DBPath)
			if err != nil {
				app.Close()
				return nil, fmt.Errorf("open history store: %w", err)
			}
			app.store = store
		}
	}

	registry := tools.NewSet()
	builtins, err := tools.Builtin(command.NewExecutor(time.Duration(cfg.Tools.ShellTimeoutSeconds) * time.Second))
	if err != nil {
		app.Close()
		return nil, err
	}
	if err := registry.Merge(builtins); err != nil {
		app.Close()
		return nil, err
	}
	if cfg.Tools.MCPConfigFilePath != "" {
		mcpTools, err := tools.LoadMCPTools(ctx, cfg.Tools.MCPConfigFilePath, logger)
		if err != nil {
			logger.Warnf("Failed to load MCP tools: %v", err)
		} else {
			app.mcpTools = mcpTools
			if err := registry.Merge(mcpTools.Set); err != nil {
				app.Close()
				return nil, err
			}
		}
	}

	svc, err := orchestrator.New(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.svc = svc

	prompt := defaultSystemPrompt
	if *systemPrompt != "" {
		prompt = *systemPrompt
	}
	app.asst = assistant.New(svc, registry,
		assistant.WithSystemPrompt(prompt),
		assistant.WithMaxSteps(cfg.LLM.MaxToolIterations),
		assistant.WithLogger(logger),
	)

	if app.store != nil {
		app.conversationID = uuid.New().String()
		if err := app.store.CreateConversation(app.conversationID, time.Now().Format("2006-01-02 15:04")); err != nil {
			logger.Warnf("Failed to create conversation record: %v", err)
			app.store.Close()
			app.store = nil
		}
	}

	return app, nil
}

// runREPL reads user turns from stdin until EOF or /quit.
func (a *application) runREPL(ctx context.Context) {
	fmt.Printf("macassist %s — provider %s. Type /quit to exit, /reload to re-read settings.\n", appVersion, a.cfg.LLM.Provider)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit", line == "/exit":
			return
		case line == "/reload":
			cfg := loadConfig()
			if err := a.svc.Reload(ctx, cfg); err != nil {
				fmt.Printf("reload failed: %v\n", err)
				continue
			}
			a.cfg = cfg
			fmt.Printf("settings reloaded; provider %s\n", cfg.LLM.Provider)
			continue
		}

		answer, err := a.asst.HandleMessage(ctx, line)
		if err != nil {
			if errors.Is(err, assistant.ErrBusy) {
				fmt.Println("still working on the previous message")
				continue
			}
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(answer)
		a.persistTurn()
	}
}

// persistTurn writes any newly committed messages to the history store,
// best-effort.
func (a *application) persistTurn() {
	if a.store == nil {
		return
	}
	msgs := a.asst.Messages()
	if len(msgs) <= a.persisted {
		return
	}
	if err := a.store.AppendMessages(a.conversationID, msgs[a.persisted:]); err != nil {
		a.logger.Warnf("Failed to persist turn: %v", err)
		return
	}
	a.persisted = len(msgs)
}

// Close releases every resource the application holds.
func (a *application) Close() {
	if a.mcpTools != nil {
		a.mcpTools.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.lock != nil {
		_ = a.lock.Release()
	}
}
