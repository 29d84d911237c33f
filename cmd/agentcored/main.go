// Command agentcored is the HTTP+SSE demo host: it loads configuration,
// wires the runtime packages together into one agentloop.Config, connects
// to the calculator MCP server, and serves internal/server's routes until
// it is asked to stop. Grounded on go-opencode's cmd/opencode-server/main.go
// (flag parsing, paths/config/provider/server bring-up order, graceful
// shutdown on SIGINT/SIGTERM) and cmd/opencode/commands/serve.go.
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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vibeworks/agentcore/internal/agentloop"
	"github.com/vibeworks/agentcore/internal/config"
	"github.com/vibeworks/agentcore/internal/hook"
	"github.com/vibeworks/agentcore/internal/llm"
	"github.com/vibeworks/agentcore/internal/logging"
	"github.com/vibeworks/agentcore/internal/mcp"
	"github.com/vibeworks/agentcore/internal/metrics"
	"github.com/vibeworks/agentcore/internal/permission"
	"github.com/vibeworks/agentcore/internal/runtime"
	"github.com/vibeworks/agentcore/internal/server"
	"github.com/vibeworks/agentcore/internal/session"
	"github.com/vibeworks/agentcore/internal/toolexec"
)

var (
	port      = flag.Int("port", 8765, "server port")
	directory = flag.String("directory", "", "working directory")
	calcPath  = flag.String("calculator", "", "path to the calculator-mcp binary (stdio MCP server); empty disables it")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	logging.Init(logging.DefaultConfig())
	defer logging.Close()

	workDir := *directory
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to get working directory")
		}
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		logging.Fatal().Err(err).Msg("failed to create data directories")
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := llm.InitializeProviders(ctx, cfg)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to initialize some providers")
	}
	providerID, _ := llm.ParseModelString(cfg.Model)
	activeProvider, err := providers.Get(providerID)
	if err != nil {
		logging.Fatal().Err(err).Str("provider", providerID).Msg("no usable provider for the configured model")
	}

	store, err := session.NewStore(paths.SessionsPath())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open session store")
	}

	mcpClient := mcp.NewClient()
	if *calcPath != "" {
		err := mcpClient.AddServer(ctx, "calculator", &mcp.Config{
			Enabled: true,
			Type:    mcp.TransportTypeStdio,
			Command: []string{*calcPath},
		})
		if err != nil {
			logging.Warn().Err(err).Msg("failed to connect calculator MCP server")
		}
	}
	for name, mc := range cfg.MCP {
		mcCopy := mc
		if err := mcpClient.AddServer(ctx, name, &mcCopy); err != nil {
			logging.Warn().Str("server", name).Err(err).Msg("failed to connect configured MCP server")
		}
	}

	toolRegistry := toolexec.NewRegistry()
	mcp.RegisterTools(mcpClient, toolRegistry)

	hooks := hook.NewRegistry()
	evaluator := permission.NewEvaluator(true, nil)
	registry := runtime.NewRegistry(evaluator)
	executor := toolexec.NewExecutor(toolRegistry, hooks, evaluator)

	m := metrics.New(prometheus.DefaultRegisterer)
	executor.SetMetrics(m)
	tracer, closeTracer := metrics.NewTracer("agentcored")
	defer closeTracer(context.Background())

	loop := agentloop.New(store, executor, hooks, agentloop.Config{
		Provider:          activeProvider,
		Model:             cfg.Model,
		SystemPrompt:      "You are agentcored, a demo agent with access to a calculator tool.",
		Tools:             llm.FilterToolDefinitions(mcpClient.ToolDefinitions(), cfg.Tools),
		MaxTokens:         4096,
		MaxToolIterations: cfg.MaxToolIterations,
		EnableCaching:     cfg.EnableCaching,
		EnableCompaction:  cfg.EnableCompaction,
		WorkDir:           workDir,
		Metrics:           m,
		Tracer:            tracer,
	})

	serverConfig := server.DefaultConfig()
	serverConfig.Port = *port
	serverConfig.Directory = workDir

	srv := server.New(serverConfig, registry, store, loop, mcpClient, m)

	go func() {
		logging.Info().Int("port", *port).Msg("agentcored listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("server shutdown error")
	}
	if err := mcpClient.Close(); err != nil {
		logging.Warn().Err(err).Msg("mcp client close error")
	}
	fmt.Println("agentcored stopped")
}
