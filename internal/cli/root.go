package cli

import (
	"fmt"
	"time"

	"github.com/kanopusdev/aurelis/internal/analytics"
	"github.com/kanopusdev/aurelis/internal/cache"
	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/kanopusdev/aurelis/internal/github"
	"github.com/kanopusdev/aurelis/internal/logger"
	"github.com/kanopusdev/aurelis/internal/orchestrator"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	Version   string
	BuildTime string
)

var (
	cfgFile   string
	modelFlag string
	verbose   bool
	noCache   bool
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "aurelis",
	Short: "AI coding assistant backed by GitHub-hosted models",
	Long: `Aurelis is a command-line AI coding assistant. It routes requests to
GitHub-hosted language models by task type, using a single GitHub access
token for authentication.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the error for exit-code mapping.
func Execute() error {
	if Version != "" {
		rootCmd.Version = fmt.Sprintf("%s (built %s)", Version, BuildTime)
	}
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		config.Init(cfgFile)
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.aurelis.yaml)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "force a specific model instead of routing by task")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose console logging")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-request timeout (overrides config)")

	viper.BindPFlag("logging.console_output", rootCmd.PersistentFlags().Lookup("verbose"))
}

// app bundles the wired components most commands need.
type app struct {
	cfg         *config.Config
	log         *zap.Logger
	client      *github.Client
	cache       *cache.Cache
	tracker     *analytics.Tracker
	orch        *orchestrator.Orchestrator
	tokenSource string
}

// newApp loads config and wires the stack. needsToken commands fail with an
// auth error up front instead of at first model call.
func newApp(needsToken bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, exitErr(ExitConfig, err)
	}

	if timeout > 0 {
		cfg.Processing.Timeout = timeout
	}

	var log *zap.Logger
	if verbose {
		log, err = logger.NewDevelopment()
	} else {
		log, err = logger.New(cfg.Logging)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	store := github.NewTokenStore(config.HomeDir())
	token, source, err := github.ResolveToken(cfg.GitHub, store)
	if err != nil && needsToken {
		return nil, err
	}
	a.tokenSource = source

	a.client = github.NewClient(cfg.GitHub, token, log)

	if cfg.Cache.Enabled {
		a.cache, err = cache.New(cfg.Cache, log)
		if err != nil {
			log.Warn("cache disabled", zap.Error(err))
			a.cache = nil
		}
	}
	if cfg.Analytics.Enabled {
		a.tracker = analytics.NewTracker(cfg.Analytics, log)
	}

	a.orch = orchestrator.New(a.client, cfg, a.cache, a.tracker, log)
	return a, nil
}

func (a *app) close() {
	if a.log != nil {
		a.log.Sync()
	}
}
