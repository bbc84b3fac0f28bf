package batch

import (
	"context"
	"encoding/json"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/rushteam/swiperec/core"
)

// KafkaSink 把交互事件批量发布到 Kafka topic，供下游（数仓、实时特征）消费。
// 生产环境通常与 StoreSink 组成 MultiSink：落库为主，事件流为辅。
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// KafkaSinkConfig 是 Kafka 事件流配置。
type KafkaSinkConfig struct {
	Brokers  []string // Broker 地址列表
	Topic    string   // 目标 Topic
	ClientID string   // 客户端 ID

	RequiredAcks int16  // 需要的 ACK 数量（1=leader, -1=all）
	Compression  string // 压缩类型（gzip, snappy, lz4, zstd）
	MaxRetries   int    // 单条记录最大重试次数
	Idempotent   bool   // 是否启用幂等写
}

// NewKafkaSink 创建 Kafka 事件流写入器。
func NewKafkaSink(config KafkaSinkConfig) (*KafkaSink, error) {
	if config.ClientID == "" {
		config.ClientID = "swiperec-interactions"
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(config.Brokers...),
		kgo.ClientID(config.ClientID),
		kgo.RecordRetries(config.MaxRetries),
	}

	var acks kgo.Acks
	switch config.RequiredAcks {
	case 0:
		acks = kgo.NoAck()
	case -1:
		acks = kgo.AllISRAcks()
	default:
		acks = kgo.LeaderAck()
	}
	opts = append(opts, kgo.RequiredAcks(acks))

	if !config.Idempotent {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}

	switch config.Compression {
	case "gzip":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.GzipCompression()))
	case "snappy":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.SnappyCompression()))
	case "lz4":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.Lz4Compression()))
	case "zstd":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.ZstdCompression()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &KafkaSink{client: client, topic: config.Topic}, nil
}

// WriteBatch 同步发布一批交互事件。
// key 取 UserID，同一用户的事件保持分区内有序；
// 消息按记录 ID 幂等由下游消费端保证（at-least-once 语义）。
func (s *KafkaSink) WriteBatch(ctx context.Context, recs []*core.Interaction) error {
	records := make([]*kgo.Record, 0, len(recs))
	for _, rec := range recs {
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte(rec.UserID),
			Value: payload,
		})
	}
	return s.client.ProduceSync(ctx, records...).FirstErr()
}

// Close 关闭 Kafka 客户端。
func (s *KafkaSink) Close() {
	s.client.Close()
}
