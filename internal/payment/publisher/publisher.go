package publisher

import (
	"log/slog"
	"sync"
	"time"

	"github.com/corray333/mall/internal/rabbitmq"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

// amqpChannel is the slice of *amqp.Channel the publisher uses.
type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	NotifyReturn(c chan amqp.Return) chan amqp.Return
}

// pendingMessage is one outstanding publish. It stays in the pending set
// until the broker positively confirms it or the attempt budget runs out;
// nothing else ever removes it.
type pendingMessage struct {
	id         string
	queue      string
	payload    []byte
	attempts   int
	lastSentAt time.Time
	alerted    bool
}

// ReliablePublisher delivers payloads with at-least-once semantics: every
// send is tracked until the broker confirms it, negative confirmations and
// unroutable returns trigger a resend, and a periodic sweep re-sends
// anything unconfirmed past the timeout. Broker confirmation only proves
// durable acceptance, not consumption; end-to-end safety comes from the
// consumer applying payments idempotently.
type ReliablePublisher struct {
	ch amqpChannel

	mu      sync.Mutex
	pending map[string]*pendingMessage
	tagToID map[uint64]string
	seq     uint64

	confirms <-chan amqp.Confirmation
	returns  <-chan amqp.Return

	confirmTimeout time.Duration
	sweepInterval  time.Duration
	maxAttempts    int

	stopCh chan struct{}
	done   chan struct{}
}

// MustNewReliablePublisher puts the client's channel into confirm mode and
// creates a publisher on it.
func MustNewReliablePublisher(client *rabbitmq.Client) *ReliablePublisher {
	if err := client.PutIntoConfirmMode(); err != nil {
		panic("failed to put channel into confirm mode: " + err.Error())
	}

	confirmTimeoutSeconds := viper.GetInt("rabbitmq.publisher.confirm_timeout_seconds")
	if confirmTimeoutSeconds == 0 {
		confirmTimeoutSeconds = 10
	}

	sweepIntervalSeconds := viper.GetInt("rabbitmq.publisher.sweep_interval_seconds")
	if sweepIntervalSeconds == 0 {
		sweepIntervalSeconds = 10
	}

	maxAttempts := viper.GetInt("rabbitmq.publisher.max_attempts")
	if maxAttempts == 0 {
		maxAttempts = 3
	}

	return newReliablePublisher(
		client.Channel(),
		time.Duration(confirmTimeoutSeconds)*time.Second,
		time.Duration(sweepIntervalSeconds)*time.Second,
		maxAttempts,
	)
}

func newReliablePublisher(
	ch amqpChannel,
	confirmTimeout, sweepInterval time.Duration,
	maxAttempts int,
) *ReliablePublisher {
	return &ReliablePublisher{
		ch:             ch,
		pending:        make(map[string]*pendingMessage),
		tagToID:        make(map[uint64]string),
		confirms:       ch.NotifyPublish(make(chan amqp.Confirmation, 128)),
		returns:        ch.NotifyReturn(make(chan amqp.Return, 128)),
		confirmTimeout: confirmTimeout,
		sweepInterval:  sweepInterval,
		maxAttempts:    maxAttempts,
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start launches the confirm/return/sweep loop.
func (p *ReliablePublisher) Start() {
	go p.loop()

	slog.Info("Reliable publisher started",
		"confirm_timeout", p.confirmTimeout,
		"sweep_interval", p.sweepInterval,
		"max_attempts", p.maxAttempts,
	)
}

// Stop stops the loop. Pending entries are not drained.
func (p *ReliablePublisher) Stop() {
	close(p.stopCh)
	<-p.done
}

// Publish sends payload to queue on the default exchange, tracked until
// confirmed. Mandatory routing makes unroutable sends come back as returns
// instead of disappearing.
func (p *ReliablePublisher) Publish(queue string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := &pendingMessage{
		id:      queue + ":" + uuid.NewString(),
		queue:   queue,
		payload: payload,
	}
	p.pending[msg.id] = msg

	return p.sendLocked(msg)
}

// PendingCount reports how many sends are still unconfirmed.
func (p *ReliablePublisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.pending)
}

// sendLocked performs one send attempt. Callers hold p.mu.
func (p *ReliablePublisher) sendLocked(msg *pendingMessage) error {
	msg.attempts++
	msg.lastSentAt = time.Now()

	// Default exchange with routing key = queue name; mandatory so an
	// unroutable send comes back as a return.
	err := p.ch.Publish(
		"",
		msg.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.id,
			Timestamp:    msg.lastSentAt,
			Body:         msg.payload,
		},
	)
	if err != nil {
		// The entry stays pending; the sweep will try again.
		slog.Warn("Publish attempt failed", "message_id", msg.id, "attempts", msg.attempts, "error", err)

		return err
	}

	// The broker assigns delivery tags only to publishes it accepted, so the
	// correlation is recorded only for those; a failed send must not shift
	// later confirms onto the wrong message.
	p.seq++
	p.tagToID[p.seq] = msg.id

	slog.Info("Message published", "message_id", msg.id, "queue", msg.queue, "attempts", msg.attempts)

	return nil
}

// resendLocked re-sends a still-pending message unless its attempt budget
// is exhausted. Callers hold p.mu.
func (p *ReliablePublisher) resendLocked(msg *pendingMessage) {
	if msg.attempts >= p.maxAttempts {
		p.alertLocked(msg)

		return
	}

	_ = p.sendLocked(msg)
}

// alertLocked surfaces an exhausted message as a delivery failure, once.
// The entry stays pending so operators can still see it.
func (p *ReliablePublisher) alertLocked(msg *pendingMessage) {
	if msg.alerted {
		return
	}
	msg.alerted = true

	slog.Error("Message delivery failed, attempt budget exhausted",
		"message_id", msg.id,
		"queue", msg.queue,
		"attempts", msg.attempts,
	)
}

func (p *ReliablePublisher) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	confirms := p.confirms
	returns := p.returns

	for {
		select {
		case <-p.stopCh:
			return
		case conf, ok := <-confirms:
			if !ok {
				confirms = nil

				continue
			}
			p.handleConfirmation(conf)
		case ret, ok := <-returns:
			if !ok {
				returns = nil

				continue
			}
			p.handleReturn(ret)
		case <-ticker.C:
			p.retryTimeouts()
		}
	}
}

// handleConfirmation resolves a broker confirm. Confirms carry only the
// channel-sequential delivery tag, so tags recorded at send time correlate
// them back to message ids.
func (p *ReliablePublisher) handleConfirmation(conf amqp.Confirmation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.tagToID[conf.DeliveryTag]
	if !ok {
		return
	}
	delete(p.tagToID, conf.DeliveryTag)

	msg, ok := p.pending[id]
	if !ok {
		return
	}

	if conf.Ack {
		delete(p.pending, id)
		slog.Info("Message confirmed by broker", "message_id", id)

		return
	}

	slog.Warn("Broker rejected message", "message_id", id, "attempts", msg.attempts)
	p.resendLocked(msg)
}

// handleReturn resends a message the broker could not route.
func (p *ReliablePublisher) handleReturn(ret amqp.Return) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slog.Error("Message returned as unroutable",
		"message_id", ret.MessageId,
		"reply_code", ret.ReplyCode,
		"reply_text", ret.ReplyText,
		"routing_key", ret.RoutingKey,
	)

	msg, ok := p.pending[ret.MessageId]
	if !ok {
		return
	}

	p.resendLocked(msg)
}

// retryTimeouts re-sends entries unconfirmed past the timeout and alerts on
// entries past their attempt budget.
func (p *ReliablePublisher) retryTimeouts() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for _, msg := range p.pending {
		if msg.attempts >= p.maxAttempts {
			p.alertLocked(msg)

			continue
		}
		if now.Sub(msg.lastSentAt) > p.confirmTimeout {
			slog.Warn("Confirm timeout, resending", "message_id", msg.id, "attempts", msg.attempts)
			_ = p.sendLocked(msg)
		}
	}
}
