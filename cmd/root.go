package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/creasty/defaults"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/evmkit/node-provider/pkg/ethereum"
	"github.com/evmkit/node-provider/pkg/ethereum/devnode"
	"github.com/evmkit/node-provider/pkg/ethereum/provider"
	"github.com/evmkit/node-provider/pkg/observability"
)

var (
	log        = logrus.New()
	configFile string
)

// Config is the top-level CLI configuration.
type Config struct {
	// LoggingLevel is the logging level to use.
	LoggingLevel string `yaml:"logging" default:"info"`
	// MetricsAddr is the address to listen on for metrics.
	MetricsAddr string `yaml:"metricsAddr" default:":9090"`
	// Ethereum configures the node connection.
	Ethereum ethereum.Config `yaml:"ethereum"`
	// DevNode configures the disposable local chain.
	DevNode devnode.Spec `yaml:"devNode"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Ethereum.Validate(); err != nil {
		return fmt.Errorf("invalid ethereum configuration: %w", err)
	}

	return nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "node-provider",
	Short: "Connects to Ethereum execution nodes and reconstructs transaction traces.",
	Long:  `Connects to Ethereum execution nodes and reconstructs transaction traces.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
}

func loadConfigFromFile(file string) (*Config, error) {
	if file == "" {
		file = "config.yaml"
	}

	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	if yamlFile, err := os.ReadFile(file); err == nil {
		type plain Config

		if err := yaml.Unmarshal(yamlFile, (*plain)(config)); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) || configFile != "" {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// runWithProvider loads the config, brings up the metrics listener, connects
// a provider and hands it to fn. Shutdown is signal-driven: the context given
// to fn is cancelled on SIGINT/SIGTERM.
func runWithProvider(ctx context.Context, fn func(ctx context.Context, p *provider.Provider) error) error {
	config, err := loadConfigFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	applyLogLevel(config.LoggingLevel)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		observability.StartMetricsServer(ctx, config.MetricsAddr)

		return nil
	})

	g.Go(func() error {
		defer stop()

		p, err := provider.New(log, &config.Ethereum)
		if err != nil {
			return err
		}

		if err := p.Connect(ctx); err != nil {
			return err
		}

		defer p.Disconnect()

		return fn(ctx, p)
	})

	return g.Wait()
}

func applyLogLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithError(err).Warn("Invalid logging level, using info")

		parsed = logrus.InfoLevel
	}

	log.SetLevel(parsed)
}
