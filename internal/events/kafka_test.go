package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Type != ArticleCreated || e.ArticleID != "ABCD1234" || e.Slot != 3 {
			return fmt.Errorf("неожиданное событие: %+v", e)
		}
		return nil
	})

	pub := NewKafkaPublisherWithProducer(producer, "board.articles", slog.Default())

	e := New(ArticleCreated, "ABCD1234", "page-1", "owner-1", "owner-1", 3, "pending")
	if err := pub.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish() ошибка: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close() ошибка: %v", err)
	}
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisherWithProducer(producer, "board.articles", slog.Default())
	defer pub.Close()

	err := pub.Publish(context.Background(), New(ArticleDeleted, "ABCD1234", "p", "o", "o", 1, "deleted"))
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("Publish() = %v, ожидалась ErrOutOfBrokers", err)
	}
}

func TestKafkaPublisher_CanceledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	pub := NewKafkaPublisherWithProducer(producer, "board.articles", slog.Default())
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pub.Publish(ctx, New(ArticleCreated, "X", "p", "o", "o", 1, "pending")); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() = %v, ожидалась context.Canceled", err)
	}
}

func TestNew(t *testing.T) {
	e := New(ArticleApproved, "ID", "page", "owner", "mod", 5, "active")
	if e.ID == "" || e.OccurredAt.IsZero() {
		t.Errorf("New() не заполнил ID/OccurredAt: %+v", e)
	}
	if e.ActorID != "mod" || e.Slot != 5 {
		t.Errorf("New() = %+v", e)
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("NopPublisher.Publish() = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("NopPublisher.Close() = %v", err)
	}
}
