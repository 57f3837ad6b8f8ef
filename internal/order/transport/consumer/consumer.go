package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/corray333/mall/internal/apperr"
	"github.com/corray333/mall/internal/payevent"
	"github.com/corray333/mall/internal/rabbitmq"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// service represents the service layer interface.
type service interface {
	ApplyPayment(ctx context.Context, orderNo int64) error
}

// Consumer consumes payment notifications from RabbitMQ. Deliveries are
// acknowledged manually, only after ApplyPayment succeeded; everything else
// goes back to the broker. ApplyPayment is idempotent, so redelivery of an
// already-applied payment is harmless.
type Consumer struct {
	client  *rabbitmq.Client
	service service
	queue   amqp.Queue
	stop    chan struct{}
	done    chan struct{}
}

// NewConsumer creates a new Consumer.
func NewConsumer(client *rabbitmq.Client, service service) *Consumer {
	queueName := viper.GetString("rabbitmq.pay_notify_queue")
	if queueName == "" {
		panic("rabbitmq.pay_notify_queue is not set in config")
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:       queueName,
		Durable:    true,
		AutoDelete: false,
		Exclusive:  false,
		NoWait:     false,
	})
	if err != nil {
		panic(err)
	}

	prefetch := viper.GetInt("rabbitmq.prefetch")
	if prefetch == 0 {
		prefetch = 50
	}
	if err := client.Qos(prefetch); err != nil {
		panic(err)
	}

	return &Consumer{
		client:  client,
		service: service,
		queue:   queue,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run starts consuming messages from RabbitMQ.
func (c *Consumer) Run(ctx context.Context) error {
	consumerTag := viper.GetString("rabbitmq.consumer_tag")
	if consumerTag == "" {
		consumerTag = "order-svc"
	}

	msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
		Queue:     c.queue.Name,
		Consumer:  consumerTag,
		AutoAck:   false,
		Exclusive: false,
		NoLocal:   false,
		NoWait:    false,
	})
	if err != nil {
		return err
	}

	slog.Info("Consumer started", "queue", c.queue.Name, "consumer_tag", consumerTag)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(50)

	go func() {
		for {
			select {
			case <-c.stop:
				slog.Info("Stopping consumer")
				close(c.done)

				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Info("Message channel closed")
					close(c.done)

					return
				}

				g.Go(func() error {
					return c.processMessage(gctx, msg)
				})
			}
		}
	}()

	<-c.done
	if err := g.Wait(); err != nil {
		slog.Error("Error processing messages", "error", err)
	}

	return nil
}

// processMessage processes a single payment notification.
func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) error {
	ctx, span := otel.Tracer("consumer").Start(ctx, "Consumer.processMessage")
	defer span.End()

	slog.Info("Received message", "delivery_tag", msg.DeliveryTag, "message_id", msg.MessageId)

	var event payevent.PaymentNotification
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("Failed to unmarshal payment notification", "error", err)
		// Malformed payloads never get better on redelivery
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return err
	}

	if event.PlatformStatus != payevent.PlatformStatusSuccess {
		slog.Info("Ignoring non-success payment notification",
			"order_no", event.OrderNo,
			"platform_status", event.PlatformStatus,
		)
		if err := msg.Ack(false); err != nil {
			slog.Error("Failed to ack message", "error", err)

			return err
		}

		return nil
	}

	if err := c.service.ApplyPayment(ctx, event.OrderNo); err != nil {
		if errors.Is(err, apperr.ErrOrderStatusConflict) {
			// Redelivery would replay the identical conflict; alert and drop.
			slog.Error("Payment conflicts with current order state, dropping message",
				"order_no", event.OrderNo,
				"error", err,
			)
			if err := msg.Nack(false, false); err != nil {
				slog.Error("Failed to nack message", "error", err)
			}

			return err
		}

		slog.Error("Failed to apply payment, requeueing", "order_no", event.OrderNo, "error", err)
		if err := msg.Nack(false, true); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return err
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "error", err)

		return err
	}

	slog.Info("Payment notification processed", "order_no", event.OrderNo)

	return nil
}

// Shutdown gracefully shuts down the consumer.
func (c *Consumer) Shutdown() error {
	slog.Info("Shutting down consumer")
	close(c.stop)

	// Wait for processing to finish with timeout
	select {
	case <-c.done:
		slog.Info("Consumer stopped successfully")
	case <-time.After(10 * time.Second):
		slog.Warn("Consumer shutdown timeout")
	}

	return nil
}
