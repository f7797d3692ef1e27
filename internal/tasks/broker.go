package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Broker is the job queue between the web process and the workers.
type Broker interface {
	// Publish enqueues one message body.
	Publish(ctx context.Context, body []byte) error

	// Receive blocks for up to about a second waiting for a message.
	// Returns ErrNoMessage when nothing arrived in that window.
	Receive(ctx context.Context) (*Delivery, error)

	// Ping checks that the broker is reachable.
	Ping(ctx context.Context) error

	Close() error

	// Type returns the broker kind (redis, rabbitmq, kafka).
	Type() string
}

// Delivery is one received message. Ack must be called once it has been handled.
type Delivery struct {
	Body []byte
	ack  func(ctx context.Context) error
}

// Ack confirms the message so the broker does not redeliver it.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// BrokerConfig selects and parameterises a Broker.
type BrokerConfig struct {
	Type          string   // redis, rabbitmq, kafka
	URL           string   // amqp:// URL for rabbitmq
	Brokers       []string // kafka bootstrap addresses
	Queue         string   // queue, list key or topic name
	ConsumerGroup string   // kafka consumer group
	Prefetch      int      // rabbitmq unacked messages per consumer, usually the worker concurrency
}

const receiveWait = time.Second

// NewBroker builds a network broker. The redis broker needs a client and is
// constructed directly with NewRedisBroker.
func NewBroker(cfg BrokerConfig) (Broker, error) {
	var (
		b   Broker
		err error
	)
	switch strings.ToLower(cfg.Type) {
	case "rabbitmq":
		b, err = NewRabbitMQBroker(cfg)
	case "kafka":
		b, err = NewKafkaBroker(cfg)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s (supported: redis, rabbitmq, kafka)", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
