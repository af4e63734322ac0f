// Package events publishes expense lifecycle notifications to an AMQP exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gamma-omg/expense-go/internal/services/expense/internal/model"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	TypeExpenseCreated = "expense.created"
	TypeExpenseDeleted = "expense.deleted"

	publishTimeout = 5 * time.Second
)

// Event is the JSON body of every published message
type Event struct {
	Type       string    `json:"type"`
	ExpenseID  string    `json:"expense_id"`
	OwnerID    string    `json:"owner_id"`
	Amount     string    `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	now      func() time.Time
	mu       sync.Mutex
}

// NewAMQPPublisher connects to the broker and declares a durable direct exchange
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		now:      time.Now,
	}, nil
}

func (p *AMQPPublisher) ExpenseCreated(ctx context.Context, e model.Expense) error {
	return p.publish(ctx, Event{
		Type:      TypeExpenseCreated,
		ExpenseID: e.ID.String(),
		OwnerID:   e.CreatedBy,
		Amount:    e.Amount.String(),
	})
}

func (p *AMQPPublisher) ExpenseDeleted(ctx context.Context, ownerID string, id uuid.UUID) error {
	return p.publish(ctx, Event{
		Type:      TypeExpenseDeleted,
		ExpenseID: id.String(),
		OwnerID:   ownerID,
	})
}

func (p *AMQPPublisher) publish(ctx context.Context, ev Event) error {
	ev.OccurredAt = p.now().UTC()
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		ev.Type,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.OccurredAt,
			MessageId:    uuid.NewString(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}

	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) ExpenseCreated(context.Context, model.Expense) error { return nil }

func (Nop) ExpenseDeleted(context.Context, string, uuid.UUID) error { return nil }

func (Nop) Close() error { return nil }
