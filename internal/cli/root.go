package cli

import (
	"fmt"
	"os"

	"elearning-chatbot-be/internal/bootstrap"
	"elearning-chatbot-be/internal/config"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/pkg/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var verbose bool

// NewRootCmd assembles chatctl. Configuration comes from the environment and
// .env, the same way the API server reads it.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatctl",
		Short: "Operate the e-learning support chatbot",
		Long: `chatctl runs maintenance tasks against the configured chatbot stack.

Examples:
  chatctl migrate
  chatctl seed --file configs/knowledge.seed.yaml
  chatctl cleanup-sessions --ttl 1h
  chatctl stats
  chatctl ask --user u1 "How do I get a certificate?"`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		NewMigrateCmd(),
		NewSeedCmd(),
		NewCleanupSessionsCmd(),
		NewStatsCmd(),
		NewAskCmd(),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime is a built container plus what must be released after the command.
type runtime struct {
	cfg       *config.Config
	db        *gorm.DB
	container *bootstrap.Container
}

func openRuntime() (*runtime, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	// Domain events are a server concern; the CLI never publishes them.
	cfg.Nats.Enabled = false

	sysLogger := logger.NewConsoleLogger(verbose)
	db, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	container, err := bootstrap.NewContainer(db, cfg, sysLogger)
	if err != nil {
		if db != nil {
			_ = database.Close(db)
		}
		return nil, fmt.Errorf("building container: %w", err)
	}
	return &runtime{cfg: cfg, db: db, container: container}, nil
}

func (r *runtime) Close() {
	_ = r.container.Close()
	if r.db != nil {
		_ = database.Close(r.db)
	}
	_ = r.container.Logger.Sync()
}
