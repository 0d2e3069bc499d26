package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/vincentdeneuf/agentine/agent"
	"github.com/vincentdeneuf/agentine/chatbot"
	"github.com/vincentdeneuf/agentine/config"
	"github.com/vincentdeneuf/agentine/conversations"
	"github.com/vincentdeneuf/agentine/llm"
	agentinelogger "github.com/vincentdeneuf/agentine/logger"
	"github.com/vincentdeneuf/agentine/migrations"
)

// agentClient adapts a single agent to the chatbot client interface.
type agentClient struct {
	agent *agent.Agent
}

func (a *agentClient) Work(ctx context.Context, query string, history []llm.Message) (*llm.Message, error) {
	return a.agent.Work(ctx, query, history, nil)
}

func (a *agentClient) Stream(ctx context.Context, query string, history []llm.Message) (llm.Stream, error) {
	return a.agent.Stream(ctx, query, history, nil)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command-line flags
	var (
		configPath    = flag.String("config", config.DefaultPath(), "Path to YAML config file")
		provider      = flag.String("provider", "", "LLM provider name (overrides config)")
		model         = flag.String("model", "", "Model name (overrides config)")
		agentName     = flag.String("agent", "", "Configured agent to chat with (defaults to the default agent, or to the legion when configured)")
		stream        = flag.Bool("stream", true, "Stream replies as they are generated")
		stats         = flag.Bool("stats", false, "Print token usage after each reply")
		dbPath        = flag.String("db", "", "Path to SQLite history database (overrides config)")
		listSessions  = flag.Bool("sessions", false, "List stored chat sessions and exit")
		sessionID     = flag.String("session", "", "Resume the stored session with this ID")
		deleteSession = flag.String("delete-session", "", "Delete the stored session with this ID and exit")
		logLevel      = flag.String("log-level", "", "Log level (trace, debug, info, warn, error)")
		pretty        = flag.Bool("pretty", false, "Use pretty console log output")
	)
	flag.Parse()

	flagSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { flagSet[f.Name] = true })

	logger := agentinelogger.InitWithOptions(os.Stderr, *logLevel, *pretty)

	// Load configuration and apply flag overrides
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *provider != "" {
		cfg.Chat.Provider = *provider
		// Model names do not carry across providers.
		cfg.Chat.Model = ""
	}
	if *model != "" {
		cfg.Chat.Model = *model
	}
	if *dbPath != "" {
		cfg.Chat.HistoryDB = *dbPath
	}
	if flagSet["stream"] {
		cfg.Chat.Stream = *stream
	}
	if flagSet["stats"] {
		cfg.Chat.ShowStats = *stats
	}

	logger.Info().
		Str("provider", cfg.Chat.Provider).
		Str("model", cfg.Chat.Model).
		Str("config", *configPath).
		Msg("agentine starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session management and persistence need the transcript store.
	needStore := *listSessions || *sessionID != "" || *deleteSession != ""
	if needStore && cfg.Chat.HistoryDB == "" {
		return fmt.Errorf("session flags require a history database (-db or chat.history_db)")
	}

	var store *conversations.Store
	if cfg.Chat.HistoryDB != "" {
		db, err := sql.Open("sqlite3", cfg.Chat.HistoryDB)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close() //nolint:errcheck // No remedy for db close errors

		if err := migrations.Run(db, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		store = conversations.NewStore(db)
	}

	switch {
	case *listSessions:
		return printSessions(ctx, store)
	case *deleteSession != "":
		if err := store.DeleteSession(ctx, *deleteSession); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		fmt.Printf("Deleted session %s\n", *deleteSession)
		return nil
	}

	client, err := buildClient(cfg, *agentName, logger)
	if err != nil {
		return err
	}

	chatOpts := []chatbot.Option{chatbot.WithLogger(logger)}
	if store != nil {
		id := *sessionID
		if id != "" {
			// Resuming: seed the chat with the stored transcript.
			history, err := store.Messages(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load session %s: %w", id, err)
			}
			chatOpts = append(chatOpts, chatbot.WithHistory(history))
			logger.Info().Str("session_id", id).Int("messages", len(history)).Msg("Resuming session")
		} else {
			title := fmt.Sprintf("Chat %s", time.Now().Format("2006-01-02 15:04"))
			id, err = store.CreateSession(ctx, title, cfg.Chat.Provider, cfg.Chat.Model)
			if err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			logger.Info().Str("session_id", id).Msg("Created session")
		}
		chatOpts = append(chatOpts, chatbot.WithStore(store, id))
	}

	bot, err := chatbot.New(client, chatOpts...)
	if err != nil {
		return err
	}
	return bot.Run(ctx, chatbot.Options{
		Stream:    cfg.Chat.Stream,
		ShowStats: cfg.Chat.ShowStats,
	})
}

// buildClient assembles the chat client from the configuration: the legion
// when one is configured and no single agent was requested, otherwise the
// named agent, the default agent, or a plain assistant.
func buildClient(cfg *config.Config, agentName string, logger zerolog.Logger) (chatbot.Client, error) {
	if agentName == "" && cfg.Legion.Speaker != "" {
		return buildLegion(cfg, logger)
	}

	name := agentName
	if name == "" {
		name, _ = cfg.DefaultAgentName()
	}
	if name == "" {
		transport, err := llm.New(cfg.LLMConfig(""), llm.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		assistant, err := agent.New(cfg.Chat.SystemPrompt,
			agent.WithName("assistant"),
			agent.WithLLM(transport),
			agent.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return &agentClient{agent: assistant}, nil
	}

	member, err := buildAgent(cfg, name, logger)
	if err != nil {
		return nil, err
	}
	return &agentClient{agent: member}, nil
}

// buildAgent constructs one configured agent with its resolved transport.
func buildAgent(cfg *config.Config, name string, logger zerolog.Logger) (*agent.Agent, error) {
	agentCfg, ok := cfg.Agents[name]
	if !ok {
		return nil, llm.NewConfigurationError("agent %q is not configured", name)
	}

	transport, err := llm.New(cfg.LLMConfig(name), llm.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	opts := []agent.Option{
		agent.WithName(name),
		agent.WithLLM(transport),
		agent.WithLogger(logger),
	}
	if agentCfg.ResponseFormat != "" {
		opts = append(opts, agent.WithResponseFormat(llm.ResponseFormat(agentCfg.ResponseFormat)))
	}
	return agent.New(agentCfg.Instruction, opts...)
}

// buildLegion wires the configured speaker, selector, and every remaining
// agent as a selectable delegate.
func buildLegion(cfg *config.Config, logger zerolog.Logger) (*agent.Legion, error) {
	speaker, err := buildAgent(cfg, cfg.Legion.Speaker, logger)
	if err != nil {
		return nil, err
	}
	selector, err := buildAgent(cfg, cfg.Legion.Selector, logger)
	if err != nil {
		return nil, err
	}

	index := agent.NewIndex()
	for name, agentCfg := range cfg.Agents {
		if name == cfg.Legion.Speaker || name == cfg.Legion.Selector {
			continue
		}
		member, err := buildAgent(cfg, name, logger)
		if err != nil {
			return nil, err
		}
		index.Add(name, member, agentCfg.Default)
	}
	return agent.NewLegion(speaker, selector, index, agent.WithLegionLogger(logger))
}

func printSessions(ctx context.Context, store *conversations.Store) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No stored sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %s  [%s/%s]  %s\n",
			s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.Provider, s.Model, s.Title)
	}
	return nil
}
