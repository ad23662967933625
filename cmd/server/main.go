package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sheikh-saqib/token-ledger/internal/api"
	"github.com/sheikh-saqib/token-ledger/internal/config"
	"github.com/sheikh-saqib/token-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/token-ledger/internal/events/memory"
	"github.com/sheikh-saqib/token-ledger/internal/events/postgres"
	"github.com/sheikh-saqib/token-ledger/internal/events/relay"
	interfaces "github.com/sheikh-saqib/token-ledger/internal/interfaces"
	"github.com/sheikh-saqib/token-ledger/internal/ledger"
	"github.com/sheikh-saqib/token-ledger/internal/logging"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile    string
	dotenvFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token-ledger",
		Short: "Serve a fungible-token ledger over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, dotenvFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&dotenvFile, "env-file", ".env", "path to a dotenv file (ignored if missing)")
	cmd.Flags().String("addr", "", "HTTP listen address (default :8080)")
	cmd.Flags().String("owner", "", "hex address of the privileged account")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().String("log-env", "", "logger profile: production, development, local")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(logging.Environment(cfg.Log.Env), cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	publishers, history, closeAll, err := openPublishers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAll()

	ledgerCfg, err := cfg.LedgerConfig()
	if err != nil {
		return err
	}
	eventLog := memory.NewLog()
	tokenLedger, err := ledger.New(ledgerCfg, eventLog)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}
	logger.Info("ledger initialized",
		zap.String("name", tokenLedger.Name()),
		zap.String("symbol", tokenLedger.Symbol()),
		zap.Uint8("decimals", tokenLedger.Decimals()),
		zap.String("owner", tokenLedger.Owner().Hex()),
		zap.String("total_supply", tokenLedger.TotalSupply().Dec()),
	)

	rel := relay.New(eventLog, logger, publishers)
	var handlerOpts []api.Option
	if history != nil {
		handlerOpts = append(handlerOpts, api.WithHistory(history))
	}
	server := api.NewServer(cfg.HTTP.Addr, api.NewHandler(tokenLedger, logger, handlerOpts...))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return rel.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Deliver whatever was appended between the last wakeup and shutdown.
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	rel.Drain(flushCtx)
	logger.Info("server stopped", zap.Uint64("events_delivered", rel.Cursor()))
	return err
}

// openPublishers wires the optional subscribers named in the config. The
// Postgres journal doubles as the event history when enabled. The returned
// close func releases every opened resource.
func openPublishers(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]interfaces.EventPublisher, interfaces.EventHistory, func(), error) {
	var (
		publishers []interfaces.EventPublisher
		history    interfaces.EventHistory
		closers    []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}
	}

	if cfg.Postgres.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, closeAll, err
		}
		closers = append(closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			closeAll()
			return nil, nil, func() {}, err
		}
		journal := postgres.NewJournal(db)
		publishers = append(publishers, journal)
		history = journal
		logger.Info("postgres journal enabled")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		p := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		closers = append(closers, p.Close)
		publishers = append(publishers, p)
		logger.Info("kafka publisher enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	return publishers, history, closeAll, nil
}
