package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const defaultConsumerGroup = "portal-workers"

// KafkaBroker writes jobs to a topic and reads them through a consumer group,
// committing offsets only after the job has been handled. The group reader is
// created on the first Receive so publish-only processes never join the group.
type KafkaBroker struct {
	config BrokerConfig
	writer *kafka.Writer

	mu     sync.Mutex
	reader *kafka.Reader
	closed bool
}

// NewKafkaBroker validates cfg and prepares the writer.
func NewKafkaBroker(cfg BrokerConfig) (*KafkaBroker, error) {
	if cfg.Queue == "" {
		return nil, fmt.Errorf("topic name is required for Kafka")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required for Kafka")
	}
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = defaultConsumerGroup
	}

	return &KafkaBroker{
		config: cfg,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Queue,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            3,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

func (k *KafkaBroker) Publish(ctx context.Context, body []byte) error {
	msg := kafka.Message{
		Value: body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	return nil
}

// consumer returns the group reader, joining the consumer group on first use.
func (k *KafkaBroker) consumer() (*kafka.Reader, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, errors.New("kafka broker is closed")
	}
	if k.reader == nil {
		k.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:        k.config.Brokers,
			GroupID:        k.config.ConsumerGroup,
			Topic:          k.config.Queue,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0, // manual commit
			StartOffset:    kafka.FirstOffset,
			MaxWait:        receiveWait,
		})
	}
	return k.reader, nil
}

func (k *KafkaBroker) Receive(ctx context.Context) (*Delivery, error) {
	reader, err := k.consumer()
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, receiveWait)
	defer cancel()

	msg, err := reader.FetchMessage(fetchCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNoMessage
		}
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}

	return &Delivery{
		Body: msg.Value,
		ack: func(ctx context.Context) error {
			if err := reader.CommitMessages(ctx, msg); err != nil {
				return fmt.Errorf("failed to commit message: %w", err)
			}
			return nil
		},
	}, nil
}

func (k *KafkaBroker) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial Kafka broker: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("failed to read broker metadata: %w", err)
	}
	return nil
}

func (k *KafkaBroker) Close() error {
	var errs []error
	if err := k.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close writer: %w", err))
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	if k.reader != nil {
		if err := k.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close reader: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (k *KafkaBroker) Type() string {
	return "kafka"
}
