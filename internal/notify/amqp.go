package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/ksuid"
)

// ResetQueue is the durable queue the mail worker consumes.
const ResetQueue = "password.reset"

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// dialFunc opens a channel and returns a func that closes it together with
// its connection.
type dialFunc func(url string) (channel, func(), error)

func dialAMQP(url string) (channel, func(), error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, func() {
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}

// AMQPPublisher publishes each notice as a persistent JSON message on
// ResetQueue. It dials per publish: resets are rare and this keeps the
// server free of reconnect logic.
type AMQPPublisher struct {
	url    string
	dial   dialFunc
	now    func() time.Time
	logger *slog.Logger
}

func NewAMQPPublisher(url string, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, dial: dialAMQP, now: time.Now, logger: logger}
}

func (p *AMQPPublisher) NotifyReset(ctx context.Context, n ResetNotice) error {
	ch, closeFn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("notify: dialing broker: %w", err)
	}
	defer closeFn()

	if _, err := ch.QueueDeclare(ResetQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("notify: declaring queue %s: %w", ResetQueue, err)
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: encoding notice: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ksuid.New().String(),
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", ResetQueue, false, false, msg); err != nil {
		return fmt.Errorf("notify: publishing notice: %w", err)
	}

	p.logger.DebugContext(ctx, "reset notice published",
		slog.String("messageID", msg.MessageId),
		slog.Int64("userID", n.UserID),
	)
	return nil
}
