// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"pmc-rag-go/internal/config"
	"pmc-rag-go/pkg/events"
	"pmc-rag-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// Enabled 报告生产者是否已初始化。
func Enabled() bool {
	return producer != nil
}

// ProduceUsageEvent 发送一条查询用量事件到 Kafka。
func ProduceUsageEvent(ctx context.Context, event events.QueryUsageEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return producer.WriteMessages(ctx,
		kafka.Message{
			Value: eventBytes,
		},
	)
}

// ProduceUsageEventAsync 在后台发布用量事件，失败只记录日志。
// 看板聚合属于外部协作方，事件发布的任何失败都不允许影响主结果。
func ProduceUsageEventAsync(event events.QueryUsageEvent) {
	if producer == nil {
		return
	}
	go func() {
		if err := ProduceUsageEvent(context.Background(), event); err != nil {
			log.Errorf("发布查询用量事件失败: %v", err)
		}
	}()
}
