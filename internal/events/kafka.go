package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bm_events_published_total",
	Help: "Количество опубликованных доменных событий по типу и результату.",
}, []string{"type", "result"})

// KafkaPublisher — публикация событий в Kafka через синхронный producer.
// Ключ сообщения — id статьи, чтобы события одной статьи шли в одну партицию.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewProducerConfig возвращает конфигурацию sarama для публикатора.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	return cfg
}

// NewKafkaPublisher подключается к брокерам и создаёт публикатор.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic, logger), nil
}

// NewKafkaPublisherWithProducer создаёт публикатор поверх готового producer.
// Используется в тестах с sarama/mocks.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger.With(slog.String("component", "kafka_publisher")),
	}
}

// Publish сериализует событие в JSON и отправляет в топик.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.ArticleID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		eventsPublishedTotal.WithLabelValues(string(e.Type), "error").Inc()
		return fmt.Errorf("ошибка отправки события %s: %w", e.Type, err)
	}
	eventsPublishedTotal.WithLabelValues(string(e.Type), "ok").Inc()

	p.logger.Debug("Событие опубликовано",
		slog.String("type", string(e.Type)),
		slog.String("article_id", e.ArticleID),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
	)
	return nil
}

// Close закрывает producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
