package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/multiworker/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "multiworker",
	Short: "Multi-worker LLM turn orchestrator",
	Long: `multiworker answers each message by running several concurrent model
calls (workers), each with bounded retry and backoff, and merging whichever
drafts succeed with one final synthesis call.

Without a subcommand it starts an interactive chat.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx; canceling it aborts the
// running turn.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/multiworker/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	addTurnFlags(rootCmd)
}

// addTurnFlags registers the per-run overrides shared by chat and ask.
func addTurnFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("model", "m", "", "model id (overrides model.id)")
	cmd.Flags().StringP("reasoning", "r", "", "reasoning effort: minimal, low, medium, high")
	cmd.Flags().IntP("workers", "w", 0, "number of concurrent workers (overrides workers.count)")
	cmd.Flags().Bool("transcript", false, "write a multiworker_trace_*.txt file after every turn")
}

func initConfig() {
	// Set defaults first so they're available even without a config file.
	// This also binds MULTIWORKER_* environment variables, e.g.
	// MULTIWORKER_WORKERS_COUNT for workers.count.
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/multiworker")
		viper.AddConfigPath(".")
	}

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
