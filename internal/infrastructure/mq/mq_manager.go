package mq

import (
	"context"
	"encoding/json"
	"time"

	myconfig "wechat_bridge_server/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// kafkaPublisher 将消息事件发布到 Kafka
type kafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher 按配置创建 Kafka 发布器
func NewKafkaPublisher(cfg *myconfig.KafkaConfig) Publisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10
	}
	return &kafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.HostPort),
			Topic:                  cfg.EventTopic,
			Balancer:               &kafka.Hash{},
			WriteTimeout:           timeout * time.Second,
			RequiredAcks:           kafka.RequireNone,
			AllowAutoTopicCreation: false,
		},
	}
}

// CreateEventTopic 创建事件 topic，已存在时忽略
func CreateEventTopic(cfg *myconfig.KafkaConfig) error {
	conn, err := kafka.Dial("tcp", cfg.HostPort)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.EventTopic,
		NumPartitions:     cfg.Partition,
		ReplicationFactor: 1,
	})
}

func (p *kafkaPublisher) PublishMessageEvent(ctx context.Context, event *MessageEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// key 为 deviceId，同设备的事件落在同一分区保证有序
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.DeviceId),
		Value: value,
	})
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// channelPublisher 进程内通道模式，单机部署和测试使用
// 通道满时丢弃最旧事件并告警，发布方不阻塞
type channelPublisher struct {
	events chan *MessageEvent
}

// NewChannelPublisher 创建进程内发布器
func NewChannelPublisher(bufferSize int) *channelPublisher {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &channelPublisher{events: make(chan *MessageEvent, bufferSize)}
}

func (p *channelPublisher) PublishMessageEvent(_ context.Context, event *MessageEvent) error {
	select {
	case p.events <- event:
	default:
		select {
		case dropped := <-p.events:
			zap.L().Warn("message event channel full, dropping oldest event",
				zap.Int64("uuid", dropped.Uuid),
				zap.String("deviceId", dropped.DeviceId))
		default:
		}
		p.events <- event
	}
	return nil
}

// Events 事件通道，供进程内消费者读取
func (p *channelPublisher) Events() <-chan *MessageEvent {
	return p.events
}

func (p *channelPublisher) Close() error {
	close(p.events)
	return nil
}

// NewPublisher 按 messageMode 选择发布实现
// "kafka" 走 Kafka，其余（含空）走进程内通道
func NewPublisher(cfg *myconfig.KafkaConfig) Publisher {
	if cfg != nil && cfg.MessageMode == "kafka" {
		zap.L().Info("message event publisher: kafka",
			zap.String("hostPort", cfg.HostPort),
			zap.String("topic", cfg.EventTopic))
		return NewKafkaPublisher(cfg)
	}
	zap.L().Info("message event publisher: channel")
	return NewChannelPublisher(0)
}
