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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shopbot/internal/config"
	"shopbot/internal/handler"
	"shopbot/internal/infrastructure/payment"
	"shopbot/internal/infrastructure/telegram"
	"shopbot/internal/webhook"
	"shopbot/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server, the bot and the reconciliation worker",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before starting")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Require(config.AllRequirements...); err != nil {
		return err
	}
	if cfg.App.Mode == config.AppModeProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tg, err := telegram.NewClient(cfg.Bot.Token, log.Named("telegram"))
	if err != nil {
		return err
	}
	gateway := payment.NewStripeGateway(cfg.Stripe)

	a, err := newApp(ctx, cfg, gateway, tg)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveMigrate {
		if err := a.db.RunMigrations(); err != nil {
			return err
		}
	}

	events := webhook.NewRouter(a.orders, a.refunds, log.Named("webhook"))
	router := handler.NewRouter(cfg.HTTP,
		handler.NewWebhookHandler(gateway, events, log.Named("webhook")),
		handler.NewHealthHandler(a.db),
		log.Named("http"))
	bot := handler.NewBotHandler(tg, a.checkouts, a.catalog, log.Named("bot"))
	reconciler := worker.NewReconciliationWorker(a.orderRepo, a.orders, gateway,
		cfg.Worker.Interval, cfg.Worker.StaleAge, cfg.Worker.BatchSize, log.Named("reconcile"))

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		bot.Run(gctx, tg.Updates(gctx))
		return nil
	})
	g.Go(func() error {
		reconciler.Run(gctx)
		return nil
	})

	err = g.Wait()
	log.Info("shutdown complete")
	return err
}
