package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"lavka/internal/config"
	httpapi "lavka/internal/http"
	"lavka/internal/metrics"
	"lavka/internal/notification"
	"lavka/internal/repository"
	"lavka/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		products  repository.ProductRepository
		customers repository.CustomerRepository
		orders    repository.OrderRepository
		payments  repository.PaymentRepository
		shipments repository.ShipmentRepository
		invoices  repository.InvoiceRepository
		carts     repository.CartRepository
		tx        repository.TxManager
	)

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect error", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("db ping error", "error", err)
			os.Exit(1)
		}
		pg := repository.NewPgStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("db schema error", "error", err)
			os.Exit(1)
		}
		products = repository.NewPgProducts(pg)
		customers = repository.NewPgCustomers(pg)
		orders = repository.NewPgOrders(pg)
		payments = repository.NewPgPayments(pg)
		shipments = repository.NewPgShipments(pg)
		invoices = repository.NewPgInvoices(pg)
		carts = repository.NewPgCarts(pg)
		tx = pg
		logger.Info("using postgres store")
	} else {
		store := repository.NewMemoryStore()
		products = store
		customers = repository.NewMemoryCustomers(store)
		orders = repository.NewMemoryOrders(store)
		payments = repository.NewMemoryPayments(store)
		shipments = repository.NewMemoryShipments(store)
		invoices = repository.NewMemoryInvoices(store)
		carts = repository.NewMemoryCarts(store)
		tx = repository.NewMemoryTx(store)
		logger.Info("using in-memory store")
	}

	var notifier service.Notifier
	if cfg.AMQPURL != "" {
		pub, err := notification.NewPublisher(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			logger.Error("amqp connect error", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		notifier = pub
	} else {
		notifier = &notification.LogNotifier{Logger: logger}
	}

	reg := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckout(reg)

	builder := service.NewOrderAggregateBuilder(products, customers, carts, cfg.CartDeliveryCharge)
	checkoutSvc := service.NewCheckoutService(service.CheckoutDeps{
		Builder:       builder,
		Ledger:        service.NewStockLedger(products),
		Customers:     customers,
		Orders:        orders,
		Payments:      payments,
		Shipments:     shipments,
		Invoices:      invoices,
		Carts:         carts,
		Tx:            tx,
		Notifier:      notifier,
		Logger:        logger,
		Metrics:       checkoutMetrics,
		VATPercent:    cfg.VATPercent,
		TxTimeout:     cfg.TxTimeout,
		NotifyTimeout: cfg.NotifyTimeout,
	})

	srv := httpapi.NewServer(
		service.NewProductService(products),
		service.NewCustomerService(customers),
		service.NewCartService(carts, products, customers),
		checkoutSvc,
		metrics.Handler(reg),
	)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Engine(),
	}

	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
