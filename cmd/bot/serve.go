package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"earnbot/internal/bot"
	"earnbot/internal/config"
	"earnbot/internal/conversation"
	"earnbot/internal/handler"
	"earnbot/internal/model"
	"earnbot/internal/pkg/db"
	"earnbot/internal/pkg/lock"
	"earnbot/internal/repository"
	"earnbot/internal/repository/memory"
	"earnbot/internal/server"
	"earnbot/internal/service"
)

const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot and its HTTP endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return errors.Wrap(err, "invalid configuration")
		}
		log.Info().
			Str("mode", cfg.Bot.Mode).
			Str("storage", cfg.Storage.Driver).
			Msg("Configuration loaded successfully")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		uow, health, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		client, err := bot.NewClient(&cfg.Bot)
		if err != nil {
			return err
		}

		dispatcher, err := buildDispatcher(cfg, uow, service.NewNotifier(client))
		if err != nil {
			return err
		}
		telegramBot := bot.New(client, &cfg.Bot, dispatcher)

		srv := server.New(cfg.HTTP.Listen, health)
		if cfg.Bot.Mode == config.ModeWebhook {
			srv.SetWebhook(telegramBot.WebhookHandler())
		}

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil {
				errCh <- err
			}
		}()
		go telegramBot.Start()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		case err := <-errCh:
			log.Error().Err(err).Msg("HTTP server failed")
		}

		telegramBot.Stop()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server did not stop cleanly")
		}

		log.Info().Msg("Bot stopped gracefully")
		return nil
	},
}

// openStore connects the configured storage backend. The memory backend
// loses all state on exit.
func openStore(ctx context.Context, cfg *config.Config) (repository.UnitOfWork, server.HealthFunc, func(), error) {
	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory storage, data will not survive a restart")
		store := memory.NewStore(map[string]string{
			model.SettingTaskPrice: cfg.Task.DefaultPrice,
		})
		return store, nil, func() {}, nil
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "connect to database")
	}
	if err := db.Migrate(cfg.Database.MigrateURL()); err != nil {
		pool.Close()
		return nil, nil, nil, errors.Wrap(err, "run database migrations")
	}
	return repository.NewStore(pool.Pool), pool.HealthCheck, pool.Close, nil
}

func buildDispatcher(cfg *config.Config, uow repository.UnitOfWork, notifier *service.Notifier) (*handler.Dispatcher, error) {
	ledger := service.NewLedger(uow, notifier, service.ReferralPolicy{
		Percent:   cfg.Referral.Percent,
		JoinBonus: cfg.Referral.JoinBonus,
	})
	users := service.NewUsers(uow)
	withdrawals := service.NewWithdrawals(uow, ledger, notifier, cfg.Admin.ID, cfg.Withdraw.MinAmount)
	tasks := service.NewTasks(uow, notifier, cfg.Admin.ID)
	lifecycle := service.NewLifecycle(uow, ledger, notifier, nil)

	settings, err := service.NewSettings(uow, cfg.Task.DefaultPrice)
	if err != nil {
		return nil, err
	}

	machine := conversation.NewMachine(
		conversation.NewStore(),
		users,
		ledger,
		withdrawals,
		settings,
		notifier,
		cfg.Admin.ID,
	)

	return handler.New(handler.Deps{
		Options: handler.Options{
			AdminID:    cfg.Admin.ID,
			SupportURL: cfg.Support.URL,
			GuideURL:   cfg.Task.GuideURL,
		},
		Locks:       lock.NewActorLock(),
		Machine:     machine,
		Users:       users,
		Ledger:      ledger,
		Withdrawals: withdrawals,
		Tasks:       tasks,
		Lifecycle:   lifecycle,
		Settings:    settings,
		Notifier:    notifier,
	}), nil
}
