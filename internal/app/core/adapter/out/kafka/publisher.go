package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

const headerEventType = "event-type"

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config describes the topic the committed-entry feed goes to.
type Config struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout" split_words:"true"`
}

// Publisher writes EntryCommitted events keyed by account id, so every
// account's entries land on one partition in commit order.
type Publisher struct {
	writer MessageWriter
}

func NewPublisher(cfg Config) *Publisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	})
}

func NewPublisherWithWriter(w MessageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Publish writes the events as one batch. Either the whole batch is
// acknowledged or an error is returned and the caller resends it.
func (p *Publisher) Publish(ctx context.Context, events []domain.EntryCommitted) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode entry %d: %w", ev.EntryID, err)
		}
		msgs[i] = kafka.Message{
			Key:   []byte(strconv.FormatInt(ev.AccountID, 10)),
			Value: data,
			Time:  ev.CommittedAt,
			Headers: []kafka.Header{
				{Key: headerEventType, Value: []byte(domain.EventEntryCommitted)},
			},
		}
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d entries: %w", len(msgs), err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
