package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// ProducerAPI is the publishing surface services depend on.
type ProducerAPI interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Producer writes domain events to a single Kafka topic.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish writes one message keyed by key. Keying by order ID keeps all
// events for an order on the same partition, preserving their order.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
