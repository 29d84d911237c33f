package commands

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

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
	servePort     int
	serveDir      string
	serveCalcPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP+SSE agent server",
	Long: `Start agentcore as a headless server that exposes the runtime over
HTTP and Server-Sent Events. Equivalent to running the agentcored binary
directly; kept here as a subcommand the way go-opencode exposes both a
dedicated server binary and an "opencode serve" command.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8765, "port to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "working directory")
	serveCmd.Flags().StringVar(&serveCalcPath, "calculator", "", "path to the calculator-mcp binary (stdio MCP server)")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if rootModel != "" {
		cfg.Model = rootModel
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
		return err
	}

	store, err := session.NewStore(paths.SessionsPath())
	if err != nil {
		return err
	}

	mcpClient := mcp.NewClient()
	if serveCalcPath != "" {
		if err := mcpClient.AddServer(ctx, "calculator", &mcp.Config{
			Enabled: true,
			Type:    mcp.TransportTypeStdio,
			Command: []string{serveCalcPath},
		}); err != nil {
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
	tracer, closeTracer := metrics.NewTracer("agentcorectl-serve")
	defer closeTracer(context.Background())

	loop := agentloop.New(store, executor, hooks, agentloop.Config{
		Provider:         activeProvider,
		Model:            cfg.Model,
		SystemPrompt:     "You are agentcore, a demo agent with access to a calculator tool.",
		Tools:            llm.FilterToolDefinitions(mcpClient.ToolDefinitions(), cfg.Tools),
		MaxTokens:        4096,
		MaxToolIterations: cfg.MaxToolIterations,
		EnableCaching:    cfg.EnableCaching,
		EnableCompaction: cfg.EnableCompaction,
		WorkDir:          workDir,
		Metrics:          m,
		Tracer:           tracer,
	})

	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort
	serverConfig.Directory = workDir

	srv := server.New(serverConfig, registry, store, loop, mcpClient, m)

	go func() {
		logging.Info().Int("port", servePort).Msg("agentcorectl serve listening")
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
	return mcpClient.Close()
}
