package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/evmkit/node-provider/pkg/ethereum/provider"
	"github.com/evmkit/node-provider/pkg/observability"
)

var devnodeCmd = &cobra.Command{
	Use:   "devnode",
	Short: "Runs a disposable local chain with pre-funded accounts.",
	Long: `Runs a disposable local chain with pre-funded accounts.

The node and its data directory are torn down on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfigFromFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		applyLogLevel(config.LoggingLevel)

		if config.DevNode.DataDir == "" {
			config.DevNode.DataDir = filepath.Join(os.TempDir(), "node-provider-dev")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			observability.StartMetricsServer(ctx, config.MetricsAddr)

			return nil
		})

		g.Go(func() error {
			defer stop()

			p, err := provider.NewDev(log, &config.DevNode)
			if err != nil {
				return err
			}

			if err := p.Connect(ctx); err != nil {
				return err
			}

			defer p.Disconnect()

			for i, account := range p.Accounts() {
				log.WithField("address", account.Address.Hex()).Infof("Funded account %d", i)
			}

			log.WithField("endpoint", config.DevNode.Endpoint()).Info("Dev node ready")

			<-ctx.Done()

			return nil
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(devnodeCmd)
}
