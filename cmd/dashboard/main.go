package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"statements/internal/amqp"
	"statements/internal/bus"
	"statements/internal/config"
	"statements/internal/ledgerapi"
	"statements/internal/log"
	"statements/internal/statement"
	"statements/internal/view"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	log.Setup()
	logger := log.ForComponent(log.ComponentDashboard)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AccountID == "" {
		logger.Error("ACCOUNT_ID is required for the dashboard")
		os.Exit(1)
	}

	fetcher := ledgerapi.NewClient(cfg.LedgerAPIURL)
	cache := statement.NewCache(fetcher, cfg.AccountID, cfg.PageSize)

	// The in-process bus carries ledger events to the cache; the AMQP
	// consumer below is its only producer in this process.
	events := bus.New()
	cache.Watch(events)

	srv := view.NewServer(":"+cfg.DashboardPort, cache, time.Now)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			err := amqpClient.Consume(ctx, func(msg *amqp.TransactionEventMessage) error {
				switch msg.Kind {
				case amqp.KindCreated:
					events.PublishCreated(*msg.Transaction)
				case amqp.KindUpdated:
					events.PublishUpdated(*msg.Transaction)
				case amqp.KindDeleted:
					events.PublishDeleted(msg.ID)
				}
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - statement updates require manual reloads")
	}

	g.Go(func() error {
		logger.Info("Starting dashboard server",
			"port", cfg.DashboardPort,
			"account_id", cfg.AccountID,
			"ledger_api", cfg.LedgerAPIURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
