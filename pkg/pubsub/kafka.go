package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	pkglog "github.com/weiawesome/wes-meet/pkg/log"
)

// channelToTopicAndKey converts a Redis-style channel to a Kafka topic and message key.
//
//	"meet:room:ROOM123:lifecycle" → topic: "meet-lifecycle", key: "ROOM123"
//
// The room id is opaque and may itself contain ':'. The prefix ends at the
// first ":room:" and the stream starts after the last ':'.
func channelToTopicAndKey(channel string) (topic, key string, err error) {
	const marker = ":room:"
	i := strings.Index(channel, marker)
	if i <= 0 {
		return "", "", fmt.Errorf("invalid channel format: %s", channel)
	}
	prefix, rest := channel[:i], channel[i+len(marker):]

	j := strings.LastIndex(rest, ":")
	if j <= 0 || j == len(rest)-1 {
		return "", "", fmt.Errorf("invalid channel format: %s", channel)
	}
	key, stream := rest[:j], rest[j+1:]

	topic = strings.ReplaceAll(prefix, ":", "-") + "-" + strings.ReplaceAll(stream, "_", "-")
	return topic, key, nil
}

// KafkaPublisher implements Broker using Apache Kafka.
// All rooms share one topic per stream; the room id is the message key
// so a room's events stay ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	config   KafkaConfig
	doneCh   chan struct{}
}

// NewKafkaPublisher creates a Kafka producer and ensures the given topics exist.
func NewKafkaPublisher(cfg KafkaConfig, topics ...string) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer: p,
		config:   cfg,
		doneCh:   make(chan struct{}),
	}

	go kp.deliveryReportHandler()

	if len(topics) > 0 {
		if err := kp.ensureTopics(topics); err != nil {
			l := pkglog.L()
			l.Warn().Err(err).Msg("failed to ensure kafka topics (may already exist)")
		}
	}

	return kp, nil
}

func (k *KafkaPublisher) ensureTopics(names []string) error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.config.Partitions
	if partitions <= 0 {
		partitions = 4
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	specs := make([]kafka.TopicSpecification, 0, len(names))
	for _, name := range names {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             name,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}

	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}

	l := pkglog.L()
	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			l.Warn().Str("topic", r.Topic).Err(r.Error).Msg("failed to create kafka topic")
		}
	}

	return nil
}

func (k *KafkaPublisher) deliveryReportHandler() {
	l := pkglog.L()
	for e := range k.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			l.Error().Err(m.TopicPartition.Error).Msg("kafka delivery failed")
		}
	}
	close(k.doneCh)
}

// Publish publishes an event to the Kafka topic derived from channel.
func (k *KafkaPublisher) Publish(ctx context.Context, channel string, event *Event) error {
	topic, key, err := channelToTopicAndKey(channel)
	if err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(key),
		Value: data,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	return nil
}

// Close flushes pending messages and closes the producer.
func (k *KafkaPublisher) Close() error {
	k.producer.Flush(5000)
	k.producer.Close()
	<-k.doneCh
	return nil
}

// TopicFor returns the Kafka topic a channel maps to.
func TopicFor(channel string) (string, error) {
	topic, _, err := channelToTopicAndKey(channel)
	return topic, err
}
