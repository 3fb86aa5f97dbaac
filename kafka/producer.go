package kafka

import (
	"commerce_settlement/model"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2/log"
)

type Producer struct {
	producer sarama.SyncProducer
}

// NewProducer dials the brokers, retrying while Kafka is still starting up.
func NewProducer(brokers []string, attempts int) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Timeout = 5 * time.Second

	var err error
	for i := 1; i <= attempts; i++ {
		var producer sarama.SyncProducer
		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			log.Infow("Kafka producer initialized", "brokers", brokers)
			return &Producer{producer: producer}, nil
		}
		log.Warnf("Waiting for Kafka... (%d/%d) Error: %v", i, attempts, err)
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("failed to start kafka producer: %w", err)
}

// NewProducerFrom wraps an existing sarama producer.
func NewProducerFrom(p sarama.SyncProducer) *Producer {
	return &Producer{producer: p}
}

// Publish sends one payment event keyed by payment id so a payment's events stay ordered.
func (p *Producer) Publish(ctx context.Context, topic string, event model.PaymentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(event.Data.PaymentId), 10)),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s event: %w", topic, err)
	}

	log.Debugw("published payment event", "topic", topic, "payment", event.Data.PaymentId, "partition", partition, "offset", offset)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
