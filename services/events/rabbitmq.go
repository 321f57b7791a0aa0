package eventsvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trezcool/quizroom/core"
)

const publishTimeout = 5 * time.Second

// rabbitPublisher publishes the events as JSON on a topic exchange, the event type being the routing key.
type rabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   core.Logger
}

var _ core.EventPublisher = (*rabbitPublisher)(nil)

func NewRabbitPublisher(conf *core.Config, logger core.Logger) (*rabbitPublisher, error) {
	conn, err := amqp.Dial(conf.RabbitMQ.URI)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}
	err = ch.ExchangeDeclare(
		conf.RabbitMQ.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring exchange")
	}
	return &rabbitPublisher{conn: conn, channel: ch, exchange: conf.RabbitMQ.Exchange, logger: logger}, nil
}

func (p *rabbitPublisher) Publish(ctx context.Context, eventType string, payload interface{}) {
	body, err := json.Marshal(core.NewEvent(eventType, payload))
	if err != nil {
		p.logger.Error("encoding event "+eventType, errors.Wrap(err, "encoding event"))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		eventType, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         eventType,
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("publishing event "+eventType, errors.Wrap(err, "publishing event"))
	}
}

func (p *rabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}
