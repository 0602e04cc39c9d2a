// Command scribe runs an autonomous file-writing agent: it prompts an LLM
// backend, interprets the free-text reply into validated tool calls, and
// dispatches them over JSON-RPC to a filesystem service, repeating until
// stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scribe/pkg/config"
	"scribe/pkg/dispatch"
	"scribe/pkg/interp"
	"scribe/pkg/llm"
	"scribe/pkg/llm/anthropic"
	"scribe/pkg/llm/google"
	"scribe/pkg/llm/ollama"
	"scribe/pkg/llm/openai"
	"scribe/pkg/logx"
	"scribe/pkg/loop"
	"scribe/pkg/mcp"
	"scribe/pkg/metrics"
	"scribe/pkg/utils"
)

const listToolsTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}
}

//nolint:funlen // Linear wiring sequence, splitting would obscure it
func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file (YAML)")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("SCRIBE_CONFIG")
	}
	if configPath == "" {
		configPath = "scribe.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logx.NewLogger("scribe")
	recorder := metrics.NewPrometheusRecorder()

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}
	backend := llm.NewBackend(client, cfg.Backend.Provider,
		llm.WithMaxTokens(cfg.Backend.MaxTokens),
		llm.WithTemperature(cfg.Backend.Temperature),
		llm.WithBackendRecorder(recorder),
	)
	logger.Info("backend: %s model %s", cfg.Backend.Provider, client.ModelName())

	channel, err := newChannel(cfg)
	if err != nil {
		return fmt.Errorf("failed to open transport channel: %w", err)
	}
	rpc := mcp.NewClient(channel)
	defer func() {
		if closeErr := rpc.Close(); closeErr != nil {
			logger.Warn("transport close: %v", closeErr)
		}
	}()

	callTimeout := cfg.Transport.CallTimeout.Std()
	if err := rpc.Initialize(callTimeout); err != nil {
		return fmt.Errorf("service handshake failed: %w", err)
	}
	serverTools, err := rpc.ListTools(listToolsTimeout)
	if err != nil {
		return fmt.Errorf("tool discovery failed: %w", err)
	}
	for _, tool := range serverTools {
		logger.Debug("service tool: %s", tool.Name)
	}
	logger.Info("connected to tool service (%d tools)", len(serverTools))

	dispatcher := dispatch.NewDispatcher(rpc, callTimeout, dispatch.WithRecorder(recorder))

	opts := []loop.Option{
		loop.WithRestInterval(cfg.Loop.RestInterval.Std()),
		loop.WithMaxIterations(cfg.Loop.MaxIterations),
		loop.WithRecorder(recorder),
	}
	if cfg.Loop.MaxPromptTokens > 0 {
		counter, counterErr := utils.NewTokenCounter(cfg.Backend.Model)
		if counterErr != nil {
			return counterErr
		}
		opts = append(opts, loop.WithPromptBudget(cfg.Loop.MaxPromptTokens, counter))
	}
	agent := loop.New(backend, interp.NewInterpreter(), dispatcher, cfg.Loop.Prompt, opts...)

	if cfg.Metrics.ListenAddr != "" {
		go serveMetrics(cfg.Metrics.ListenAddr, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return agent.Run(ctx)
}

// newBackendClient builds the provider client named in the config.
func newBackendClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.Backend.Provider {
	case config.ProviderOllama:
		return ollama.NewClient(cfg.Backend.Host, cfg.Backend.Model), nil
	case config.ProviderAnthropic:
		return anthropic.NewClient(cfg.Backend.APIKey, cfg.Backend.Model), nil
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.Backend.APIKey, cfg.Backend.Model), nil
	case config.ProviderGoogle:
		return google.NewClient(cfg.Backend.APIKey, cfg.Backend.Model), nil
	default:
		return nil, fmt.Errorf("unknown backend provider: %q", cfg.Backend.Provider)
	}
}

// newChannel opens the configured transport to the tool service.
func newChannel(cfg *config.Config) (mcp.Channel, error) {
	switch cfg.Transport.Mode {
	case config.TransportStdio:
		return mcp.StartStdioChannel(cfg.Transport.Command, cfg.Transport.Args...)
	case config.TransportSocket:
		return mcp.DialSocket(cfg.Transport.Addr)
	default:
		return nil, fmt.Errorf("unknown transport mode: %q", cfg.Transport.Mode)
	}
}

func serveMetrics(addr string, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listening on %s", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Error("metrics server: %v", err)
	}
}
