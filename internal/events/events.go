package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/cafelumiere/orderflow/internal/model"
)

const (
	TypeOrderCreated  = "order.created"
	TypeStatusChanged = "order.status_changed"
)

type Event struct {
	Type        string       `json:"type"`
	OrderNumber string       `json:"order_number"`
	Status      model.Status `json:"status"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

func FromOrder(typ string, o model.Order) Event {
	return Event{Type: typ, OrderNumber: o.Number, Status: o.Status, OccurredAt: o.UpdatedAt}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// KafkaPublisher keys messages by order number so the events of one order
// stay on one partition, in order.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.SugaredLogger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.SugaredLogger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Timeout = 5 * time.Second

	prod, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return NewKafkaPublisherWithProducer(prod, topic, logger), nil
}

func NewKafkaPublisherWithProducer(p sarama.SyncProducer, topic string, logger *zap.SugaredLogger) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic, logger: logger}
}

func (p *KafkaPublisher) Publish(_ context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.OrderNumber),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return err
	}

	p.logger.Debugf("%s for %s stored in %s/%d/%d", e.Type, e.OrderNumber, p.topic, partition, offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
