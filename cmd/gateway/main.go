package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ai-tel/mcp-gateway/internal/catalog"
	"github.com/ai-tel/mcp-gateway/internal/chat"
	"github.com/ai-tel/mcp-gateway/internal/config"
	"github.com/ai-tel/mcp-gateway/internal/dag"
	"github.com/ai-tel/mcp-gateway/internal/llm"
	"github.com/ai-tel/mcp-gateway/internal/server"
	"github.com/ai-tel/mcp-gateway/internal/sqltool"
	"github.com/ai-tel/mcp-gateway/internal/stdio"
	"github.com/ai-tel/mcp-gateway/internal/thread"
	"github.com/ai-tel/mcp-gateway/internal/tool"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serve(os.Args[2:])
	case "stdio":
		stdioBridge(os.Args[2:])
	case "tools":
		listTools(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  gateway serve [--config <gateway.yaml>] [--addr <:3100>]")
	fmt.Fprintln(os.Stderr, "  gateway stdio [--config <gateway.yaml>]")
	fmt.Fprintln(os.Stderr, "  gateway tools [--config <gateway.yaml>]")
}

func loadConfig(args []string, extra func(*flag.FlagSet)) (*config.Config, *flag.FlagSet) {
	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	configPath := fs.String("config", "gateway.yaml", "path to config file")
	if extra != nil {
		extra(fs)
	}
	_ = fs.Parse(args)

	// Missing .env is fine; explicit config errors are not.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	return cfg, fs
}

func newLogger(cfg *config.Config, console bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if console {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	} else {
		log = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}
	return log
}

func buildRegistry(cfg *config.Config, log zerolog.Logger) *tool.Registry {
	reg := tool.NewRegistry()
	scale := cfg.Tools.LatencyScale
	services := []interface {
		Register(*tool.Registry) error
	}{
		sqltool.NewService(scale),
		catalog.NewService(catalog.NewStore(), scale),
		dag.NewService(dag.NewStore(cfg.Tools.DagsDir), scale),
	}
	for _, svc := range services {
		if err := svc.Register(reg); err != nil {
			log.Fatal().Err(err).Msg("register tools")
		}
	}
	return reg
}

func serve(args []string) {
	var addr *string
	cfg, _ := loadConfig(args, func(fs *flag.FlagSet) {
		addr = fs.String("addr", "", "listen address (overrides config)")
	})
	if *addr != "" {
		cfg.Addr = *addr
	}

	log := newLogger(cfg, true)
	reg := buildRegistry(cfg, log)
	dispatcher := tool.NewDispatcher(reg, cfg.ToolTimeout(), log)
	threads := thread.NewStore()

	client := llm.NewClient(cfg.APIKey(), cfg.Chat.BaseURL)
	orch := chat.New(client, dispatcher, reg, threads, chat.Config{
		Model:             cfg.Chat.Model,
		MaxToolRounds:     cfg.Chat.MaxToolRounds,
		HistoryWindow:     cfg.Chat.HistoryWindow,
		CompletionTimeout: cfg.CompletionTimeout(),
		ToolTimeout:       cfg.ToolTimeout(),
	}, log)

	if !client.Enabled() {
		log.Warn().Str("env", cfg.Chat.APIKeyEnv).Msg("no API key set, chat endpoints will fail")
	}

	srv := server.New(server.Config{Addr: cfg.Addr}, reg, dispatcher, threads, orch, client.Enabled(), log)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func stdioBridge(args []string) {
	cfg, _ := loadConfig(args, nil)

	// Stdout carries the protocol, so logs go to stderr only.
	log := newLogger(cfg, false)
	reg := buildRegistry(cfg, log)
	dispatcher := tool.NewDispatcher(reg, cfg.ToolTimeout(), log)

	bridge := stdio.New(reg, dispatcher, log)
	log.Info().Int("tools", len(reg.Names())).Msg("stdio bridge ready")
	if err := bridge.Run(context.Background(), os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("bridge failed")
	}
}

func listTools(args []string) {
	cfg, _ := loadConfig(args, nil)
	log := newLogger(cfg, true)
	reg := buildRegistry(cfg, log)

	subsystems := reg.Subsystems()
	names := make([]string, 0, len(subsystems))
	for name := range subsystems {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name + ":")
		for _, t := range subsystems[name] {
			fmt.Println("  " + t)
		}
	}
}
