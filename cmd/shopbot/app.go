package main

import (
	"context"

	"shopbot/internal/catalog"
	"shopbot/internal/config"
	"shopbot/internal/database"
	"shopbot/internal/infrastructure/payment"
	"shopbot/internal/repo"
	"shopbot/internal/service"
)

// app holds the wired services shared by the commands.
type app struct {
	db        database.Service
	orderRepo repo.OrderRepo
	gateway   payment.Gateway
	orders    service.OrderService
	refunds   service.RefundService
	checkouts service.CheckoutService
	catalog   *catalog.Catalog
}

func newApp(ctx context.Context, conf *config.Config, gateway payment.Gateway, messenger service.Messenger) (*app, error) {
	db, err := database.NewPostgres(ctx, conf.Database, log.Named("database"))
	if err != nil {
		return nil, err
	}

	products := catalog.Default()
	orderRepo := repo.NewOrderRepo(db.DB())
	notifier := service.NewNotificationService(messenger, conf.Bot.NotifyTimeout, log.Named("notify"))
	orders := service.NewOrderService(orderRepo, notifier, log.Named("orders"))

	return &app{
		db:        db,
		orderRepo: orderRepo,
		gateway:   gateway,
		orders:    orders,
		refunds:   service.NewRefundService(orderRepo, orders, gateway, log.Named("refunds")),
		checkouts: service.NewCheckoutService(orderRepo, gateway, products, log.Named("checkout")),
		catalog:   products,
	}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
}
