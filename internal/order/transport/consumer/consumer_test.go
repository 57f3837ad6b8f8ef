package consumer

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/corray333/mall/internal/apperr"
	"github.com/streadway/amqp"
)

type fakeService struct {
	mu      sync.Mutex
	applied []int64
	err     error
}

func (f *fakeService) ApplyPayment(_ context.Context, orderNo int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.applied = append(f.applied, orderNo)

	return f.err
}

type fakeAcknowledger struct {
	mu       sync.Mutex
	acked    bool
	nacked   bool
	requeued bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.acked = true

	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nacked = true
	a.requeued = requeue

	return nil
}

func (a *fakeAcknowledger) Reject(uint64, bool) error {
	return nil
}

func TestProcessMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		serviceErr  error
		wantErr     bool
		wantApplied bool
		wantAck     bool
		wantNack    bool
		wantRequeue bool
	}{
		{
			name:        "successful payment is acked",
			body:        `{"orderNo":1001,"platformStatus":"SUCCESS"}`,
			wantApplied: true,
			wantAck:     true,
		},
		{
			name:    "non-success notification is acked without applying",
			body:    `{"orderNo":1001,"platformStatus":"NOTPAY"}`,
			wantAck: true,
		},
		{
			name:     "malformed payload is dropped",
			body:     `{"orderNo":`,
			wantErr:  true,
			wantNack: true,
		},
		{
			name:        "status conflict is dropped",
			body:        `{"orderNo":1001,"platformStatus":"SUCCESS"}`,
			serviceErr:  fmt.Errorf("order 1001: %w", apperr.ErrOrderStatusConflict),
			wantErr:     true,
			wantApplied: true,
			wantNack:    true,
		},
		{
			name:        "transient failure is requeued",
			body:        `{"orderNo":1001,"platformStatus":"SUCCESS"}`,
			serviceErr:  fmt.Errorf("connection refused"),
			wantErr:     true,
			wantApplied: true,
			wantNack:    true,
			wantRequeue: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeService{err: tt.serviceErr}
			ack := &fakeAcknowledger{}
			c := &Consumer{service: svc}

			err := c.processMessage(context.Background(), amqp.Delivery{
				Acknowledger: ack,
				DeliveryTag:  1,
				Body:         []byte(tt.body),
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("processMessage() error = %v, wantErr %v", err, tt.wantErr)
			}

			if got := len(svc.applied) > 0; got != tt.wantApplied {
				t.Errorf("ApplyPayment called = %v, want %v", got, tt.wantApplied)
			}
			if ack.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", ack.acked, tt.wantAck)
			}
			if ack.nacked != tt.wantNack {
				t.Errorf("nacked = %v, want %v", ack.nacked, tt.wantNack)
			}
			if ack.nacked && ack.requeued != tt.wantRequeue {
				t.Errorf("requeued = %v, want %v", ack.requeued, tt.wantRequeue)
			}
		})
	}
}
