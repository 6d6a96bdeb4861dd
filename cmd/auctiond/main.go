package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"github.com/coordination-labs/auction-sdk/auction"
	"github.com/coordination-labs/auction-sdk/config"
	"github.com/coordination-labs/auction-sdk/coordinator"
	"github.com/coordination-labs/auction-sdk/metrics"
	"github.com/coordination-labs/auction-sdk/service"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "auctiond",
		Short: "Multi-chain auction coordinator",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Run the coordinator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	startCmd.Flags().StringVar(&configPath, "config", "", "path to config file")

	cmd.AddCommand(startCmd)
	return cmd
}

// logConsumer is the default downstream consumer when no external sink is
// wired: sealed results and revenue splits are logged for operators.
type logConsumer struct {
	logger log.Logger
}

func (l logConsumer) ConsumeResult(result *auction.AuctionResult) {
	l.logger.Info("auction result",
		"window_id", result.WindowID,
		"auction_type", result.AuctionType.String(),
		"winners", len(result.WinningTransactions),
		"total_revenue", result.TotalRevenue,
	)
}

func (l logConsumer) ConsumeSplit(split auction.RevenueSplit) {
	l.logger.Info("revenue split",
		"window_id", split.WindowID,
		"coordinator_share", split.CoordinatorRevenueShare,
		"partner_share", split.PartnerRevenueShare,
	)
}

func run(parent context.Context, cfg *config.Config) error {
	logger := log.NewLogger(os.Stderr)
	mets := metrics.New("auctionsdk")

	sink := logConsumer{logger: logger}
	emitter := service.NewEmitter(logger, []service.ResultConsumer{sink}, []service.RevenueConsumer{sink})

	mc := cfg.ManagerConfig(logger)
	mc.Metrics = mets
	manager, err := auction.NewManager(mc, emitter)
	if err != nil {
		return err
	}

	coord := coordinator.New(logger, manager, mets)

	server := service.NewServer(service.ServerConfig{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              cfg.MetricsAddr,
		ReadTimeout:              5 * time.Second,
		WriteTimeout:             10 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ChainPolicy:              cfg.ChainPolicy,
		Logger:                   logger,
	}, coord, manager, mets)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go manager.Start(ctx)
	go emitter.Start(ctx)

	err = server.Start(ctx)
	<-emitter.Done()
	return err
}
