// Package commands provides agentcorectl's CLI commands, grounded on
// go-opencode's cmd/opencode/commands (root.go's persistent flags and
// PersistentPreRun logging setup, generalized from that module's own
// Config shape to this one's).
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vibeworks/agentcore/internal/config"
	"github.com/vibeworks/agentcore/internal/logging"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	printLogs  bool
	logLevel   string
	logFile    bool
	showConfig bool
	rootModel  string
)

var rootCmd = &cobra.Command{
	Use:     "agentcorectl",
	Short:   "Client for the agentcore agent runtime",
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()

		logCfg := logging.DefaultConfig()
		logCfg.Level = logging.ParseLevel(logLevel)
		logCfg.Pretty = printLogs
		logCfg.LogToFile = logFile
		if !printLogs && !logFile {
			logCfg.Level = logging.FatalLevel
		}
		logging.Init(logCfg)

		if showConfig {
			dir, err := os.Getwd()
			if err != nil {
				fmt.Fprintf(os.Stderr, "error getting working directory: %v\n", err)
				os.Exit(1)
			}
			cfg, err := config.Load(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
				os.Exit(1)
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "error marshaling config: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
			os.Exit(0)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "write logs to a timestamped temp file")
	rootCmd.PersistentFlags().BoolVar(&showConfig, "show-config", false, "print merged configuration as JSON and exit")
	rootCmd.PersistentFlags().StringVarP(&rootModel, "model", "m", "", "model to use (provider/model format)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("agentcorectl %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns dir if set, else the process's current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
