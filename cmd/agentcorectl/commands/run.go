package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vibeworks/agentcore/internal/agentchan"
	"github.com/vibeworks/agentcore/internal/agentloop"
	"github.com/vibeworks/agentcore/internal/config"
	"github.com/vibeworks/agentcore/internal/hook"
	"github.com/vibeworks/agentcore/internal/llm"
	"github.com/vibeworks/agentcore/internal/mcp"
	"github.com/vibeworks/agentcore/internal/metrics"
	"github.com/vibeworks/agentcore/internal/permission"
	"github.com/vibeworks/agentcore/internal/runtime"
	"github.com/vibeworks/agentcore/internal/session"
	"github.com/vibeworks/agentcore/internal/toolexec"
)

var (
	runDir      string
	runCalcPath string
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Send one message to a fresh session and print the reply",
	Long: `Start a new session, send it the given message, and print its
response as it streams in.

Example:
  agentcorectl run "What is 12 * 7?"`,
	RunE: runInteractive,
}

func init() {
	runCmd.Flags().StringVar(&runDir, "directory", "", "working directory")
	runCmd.Flags().StringVar(&runCalcPath, "calculator", "", "path to the calculator-mcp binary (stdio MCP server)")
}

// runInteractive wires up the same packages cmd/agentcored does, but for
// exactly one session run to completion on stdout instead of an HTTP
// server — the interactive counterpart to go-opencode's run.go.
func runInteractive(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message required. usage: agentcorectl run \"your message\"")
	}

	workDir, err := GetWorkDir(runDir)
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
		return fmt.Errorf("failed to initialize providers: %w", err)
	}
	providerID, _ := llm.ParseModelString(cfg.Model)
	activeProvider, err := providers.Get(providerID)
	if err != nil {
		return fmt.Errorf("no usable provider for model %q: %w", cfg.Model, err)
	}

	store, err := session.NewStore(paths.SessionsPath())
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	mcpClient := mcp.NewClient()
	if runCalcPath != "" {
		if err := mcpClient.AddServer(ctx, "calculator", &mcp.Config{
			Enabled: true,
			Type:    mcp.TransportTypeStdio,
			Command: []string{runCalcPath},
		}); err != nil {
			return fmt.Errorf("failed to connect calculator MCP server: %w", err)
		}
	}
	defer mcpClient.Close()

	toolRegistry := toolexec.NewRegistry()
	mcp.RegisterTools(mcpClient, toolRegistry)

	hooks := hook.NewRegistry()
	evaluator := permission.NewEvaluator(false, nil)
	registry := runtime.NewRegistry(evaluator)
	executor := toolexec.NewExecutor(toolRegistry, hooks, evaluator)
	executor.SetMetrics(metrics.New(prometheus.NewRegistry()))

	loop := agentloop.New(store, executor, hooks, agentloop.Config{
		Provider:     activeProvider,
		Model:        cfg.Model,
		SystemPrompt: "You are agentcorectl, a demo agent with access to a calculator tool.",
		Tools:        llm.FilterToolDefinitions(mcpClient.ToolDefinitions(), cfg.Tools),
		MaxTokens:    4096,
	})

	sess, err := store.Create(ctx, workDir, nil, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	handle := registry.Spawn(sess.ID, loop.Run)
	recv := handle.Subscribe()
	defer recv.Unsubscribe()

	if err := handle.SendInput(ctx, message); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	fmt.Printf("session %s\n\n", sess.ID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-recv.Chan():
			if !ok {
				return nil
			}
			switch c := chunk.(type) {
			case agentchan.TextDelta:
				fmt.Print(c.Text)
			case agentchan.ErrorChunk:
				fmt.Fprintf(os.Stderr, "\nerror: %s\n", c.Message)
			case agentchan.DoneChunk:
				fmt.Println()
				_ = registry.Shutdown(ctx, sess.ID)
				return nil
			}
		}
	}
}
