package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/mall/internal/order/service/services/closesvc"
	"github.com/corray333/mall/internal/order/service/services/ordersvc"
	"github.com/corray333/mall/internal/order/transport/consumer"
	httptransport "github.com/corray333/mall/internal/order/transport/http"
	"github.com/corray333/mall/internal/order/worker/timeout"
	"github.com/corray333/mall/internal/otel"
	"github.com/corray333/mall/internal/postgres"
	"github.com/corray333/mall/internal/rabbitmq"
)

// App represents the order service application.
type App struct {
	orderSvc       *ordersvc.OrderService
	closeSvc       *closesvc.CloseService
	scheduler      *timeout.Scheduler
	transport      *httptransport.HTTPTransport
	consumerTransp *consumer.Consumer
	postgresClient *postgres.Client
	rabbitMqClient *rabbitmq.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel("order-svc")
	postgresClient := postgres.MustNewClient("ORDER", "order.postgres")
	rabbitMqClient := rabbitmq.MustNewClient()

	closeSvc := closesvc.MustNewCloseService(
		closesvc.WithPostgresClient(postgresClient),
	)

	scheduler := timeout.NewScheduler(closeSvc)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithScheduler(scheduler),
		ordersvc.WithCanceler(closeSvc),
	)

	transport := httptransport.NewHTTPTransport(orderSvc)
	transport.RegisterRoutes()

	consumerTransp := consumer.NewConsumer(rabbitMqClient, orderSvc)

	return &App{
		orderSvc:       orderSvc,
		closeSvc:       closeSvc,
		scheduler:      scheduler,
		transport:      transport,
		consumerTransp: consumerTransp,
		postgresClient: postgresClient,
		rabbitMqClient: rabbitMqClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.scheduler.Start(ctx)

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting payment notification consumer")
		if err := a.consumerTransp.Run(ctx); err != nil {
			slog.Error("Consumer error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")
	cancel()

	a.gracefulShutdown()
}

// gracefulShutdown performs graceful shutdown of all application components.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.scheduler.Stop()
	slog.Info("Timeout scheduler stopped gracefully")

	if err := a.consumerTransp.Shutdown(); err != nil {
		slog.Error("Consumer shutdown error", "error", err)
	} else {
		slog.Info("Consumer stopped gracefully")
	}

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.rabbitMqClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider closed gracefully")
	}

	slog.Info("Application shutdown complete")
}
