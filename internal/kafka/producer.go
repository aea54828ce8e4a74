package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"ms-canteen/internal/models"
)

// Producer streams reservation lifecycle events to Kafka.
type Producer struct {
	Writer *kafka.Writer
	Topics TopicSet
}

type TopicSet struct {
	Created   string
	Cancelled string
	Completed string
}

func NewProducer(brokers []string, topics TopicSet) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Topics: topics}
}

func (p *Producer) publish(topic string, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

func (p *Producer) PublishReservationCreated(res models.Reservation) error {
	return p.publish(p.Topics.Created, res.ID, res)
}

func (p *Producer) PublishReservationCancelled(res models.Reservation) error {
	return p.publish(p.Topics.Cancelled, res.ID, res)
}

func (p *Producer) PublishReservationCompleted(res models.Reservation) error {
	return p.publish(p.Topics.Completed, res.ID, res)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
