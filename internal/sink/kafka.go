package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConfig 配置事件流输出。
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaSink 把每条记录作为一条 JSON 消息写入主题，键为虚拟机 ID。
type KafkaSink struct {
	client  producer
	topic   string
	timeout time.Duration
}

// NewKafkaSink 创建 franz-go 客户端。
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers 不能为空")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka topic 不能为空")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "oneacct-export"
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 kafka 客户端失败: %w", err)
	}
	return newKafkaSink(cl, cfg.Topic, cfg.Timeout), nil
}

func newKafkaSink(p producer, topic string, timeout time.Duration) *KafkaSink {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &KafkaSink{client: p, topic: topic, timeout: timeout}
}

func (k *KafkaSink) Name() string { return "kafka" }

// Publish 同步发送整批记录，任一条失败即返回错误。
func (k *KafkaSink) Publish(ctx context.Context, b Batch) error {
	if len(b.Records) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(b.Records))
	for _, rec := range b.Records {
		value, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("序列化记录 %s 失败: %w", rec.Identifier(), err)
		}
		records = append(records, &kgo.Record{
			Key:   []byte(rec.Identifier()),
			Topic: k.topic,
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "run_id", Value: []byte(b.RunID)},
				{Key: "output_type", Value: []byte(b.OutputType)},
				{Key: "file_number", Value: []byte(strconv.Itoa(b.FileNumber))},
			},
		})
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	if err := k.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("写入 kafka 失败: %w", err)
	}
	return nil
}

func (k *KafkaSink) Close(context.Context) error {
	k.client.Close()
	return nil
}
