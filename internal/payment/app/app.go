package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/mall/internal/otel"
	payinforepo "github.com/corray333/mall/internal/payment/dal/repositories/payinfo/postgres"
	"github.com/corray333/mall/internal/payment/publisher"
	"github.com/corray333/mall/internal/payment/service/services/paysvc"
	httptransport "github.com/corray333/mall/internal/payment/transport/http"
	"github.com/corray333/mall/internal/postgres"
	"github.com/corray333/mall/internal/rabbitmq"
	"github.com/spf13/viper"
)

// App represents the payment service application.
type App struct {
	paySvc         *paysvc.PayService
	transport      *httptransport.HTTPTransport
	pub            *publisher.ReliablePublisher
	postgresClient *postgres.Client
	rabbitMqClient *rabbitmq.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel("payment-svc")
	postgresClient := postgres.MustNewClient("PAYMENT", "payment.postgres")
	rabbitMqClient := rabbitmq.MustNewClient()

	// The queue is declared on the publishing side too, so a payment can
	// be notified before the order service ever came up.
	if _, err := rabbitMqClient.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    viper.GetString("rabbitmq.pay_notify_queue"),
		Durable: true,
	}); err != nil {
		panic(err)
	}

	pub := publisher.MustNewReliablePublisher(rabbitMqClient)

	payInfoRepository := payinforepo.NewPostgresPayInfoRepository(postgresClient.Pool())

	paySvc := paysvc.MustNewPayService(
		paysvc.WithPayInfoRepository(payInfoRepository),
		paysvc.WithPublisher(pub),
	)

	transport := httptransport.NewHTTPTransport(paySvc)
	transport.RegisterRoutes()

	return &App{
		paySvc:         paySvc,
		transport:      transport,
		pub:            pub,
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

	a.pub.Start()

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	a.gracefulShutdown()
}

// gracefulShutdown performs graceful shutdown of all application components.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.pub.Stop()
	slog.Info("Reliable publisher stopped gracefully")

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
