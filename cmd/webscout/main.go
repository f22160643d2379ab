package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"webscout/internal/adapter/fetch"
	"webscout/internal/adapter/gateway"
	mcpserver "webscout/internal/adapter/mcp"
	"webscout/internal/adapter/searx"
	"webscout/internal/adapter/tool"
	"webscout/internal/extract"
	"webscout/internal/infra/config"
	"webscout/internal/infra/logger"
	"webscout/internal/infra/tracer"
)

const version = "0.3.0"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		case "--version", "version":
			fmt.Println("webscout " + version)
			return
		}
	}

	mode := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "gateway" {
		mode = "gateway"
		args = args[1:]
	}

	fs := flag.NewFlagSet("webscout", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	if err := run(mode, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(mode, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// In serve mode stdout carries protocol frames; logs must not mix in.
	if mode == "serve" && cfg.Logger.Output == "stdout" {
		cfg.Logger.Output = "stderr"
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	registry, cleanup, err := buildTools(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	switch mode {
	case "gateway":
		log.Info("starting HTTP gateway", "addr", cfg.Gateway.Addr)
		return gateway.NewServer(registry, cfg.Gateway.Addr, log).Start(ctx)
	default:
		log.Info("starting MCP session on stdio")
		session := mcpserver.NewSession(os.Stdin, os.Stdout, registry,
			mcpgo.Implementation{Name: "webscout", Version: version}, log)
		return session.Run(ctx)
	}
}

// buildTools wires the search and scrape pipelines and registers both tools.
func buildTools(cfg config.Config, log *slog.Logger) (*tool.Registry, func(), error) {
	backend := searx.NewBreakerBackend(
		searx.NewClient(cfg.Search.BackendURL, cfg.Search.DefaultEngines, cfg.Search.Timeout, log),
		cfg.Search.Breaker, log)

	var renderer fetch.RenderBackend
	cleanup := func() {}
	if cfg.Fetch.Renderer == "chromedp" {
		r := fetch.NewChromeDPRenderer(cfg.Fetch.RendererTimeout, log)
		renderer = r
		cleanup = func() { r.Close() }
	}

	fetcher := fetch.NewFetcher(cfg.Fetch, renderer, log)
	extractor := extract.New(cfg.Extract, log)

	registry := tool.NewRegistry(log)
	if err := registry.Register(tool.NewSearchWebTool(backend, cfg.Search.CacheTTL, log)); err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := registry.Register(tool.NewScrapeURLTool(fetcher, extractor, cfg.Fetch.CacheTTL, log)); err != nil {
		cleanup()
		return nil, nil, err
	}

	log.Info("tools registered", "tools", registry.Names())
	return registry, cleanup, nil
}

func showUsage() {
	fmt.Println(`webscout - federated web search and page extraction over MCP

USAGE:
    webscout [COMMAND] [FLAGS]

COMMANDS:
    (no command)  Serve the MCP session on stdin/stdout
    gateway       Serve the plain HTTP wrapper (/search, /scrape, /health)

FLAGS:
    -h, --help     Show this help message
    --version      Print the version
    --config PATH  Config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml (YAML, all fields optional)
    Environment: SEARXNG_URL, WEBSCOUT_LOG_LEVEL, WEBSCOUT_GATEWAY_ADDR,
                 WEBSCOUT_FETCH_TIMEOUT override the file

EXAMPLES:
    webscout                          # MCP server for an AI-assistant client
    webscout gateway                  # HTTP surface on 127.0.0.1:5000
    SEARXNG_URL=http://searx:8888 webscout`)
}
