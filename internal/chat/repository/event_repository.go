package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"realtime_chat_service/internal/chat/domain"

	"github.com/segmentio/kafka-go"
)

// EventPublisher definition outbound chat event stream
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ChatEvent) error
}

type kafkaEventPublisher struct {
	writer *kafka.Writer
}

// NewKafkaEventPublisher create an EventPublisher over a kafka writer
func NewKafkaEventPublisher(writer *kafka.Writer) EventPublisher {
	return &kafkaEventPublisher{writer: writer}
}

// Publish 寫入聊天事件；key 用 chat_id 保持同一聊天室的分區順序
func (p *kafkaEventPublisher) Publish(ctx context.Context, event domain.ChatEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal chat event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ChatID),
		Value: data,
	})
}
