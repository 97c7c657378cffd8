package kafka_client

import (
	"context"
	"encoding/json"
	"time"

	"mfanalytics/types"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

type Producer struct {
	producer *kafka.Producer
	topic    string
}

// NewProducer connects to the cluster, makes sure the topic exists and starts
// the delivery report loop.
func NewProducer(bootstrapServers, topic string, numParts, replicationFactor int) (*Producer, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": bootstrapServers,
		"client.id":         "mfanalytics",
		"acks":              "all",
	})
	if err != nil {
		return nil, err
	}

	adminClient, err := kafka.NewAdminClientFromProducer(producer)
	if err != nil {
		producer.Close()
		return nil, err
	}
	defer adminClient.Close()

	go func() {
		for e := range producer.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					zap.L().Error("Kafka delivery failed", zap.Error(ev.TopicPartition.Error))
				} else {
					zap.L().Debug("Delivered message", zap.String("topic", *ev.TopicPartition.Topic))
				}
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	results, err := adminClient.CreateTopics(
		ctx,
		[]kafka.TopicSpecification{{
			Topic:             topic,
			NumPartitions:     numParts,
			ReplicationFactor: replicationFactor}},
		kafka.SetAdminOperationTimeout(60*time.Second))
	if err != nil {
		zap.L().Error("Failed to create topic", zap.String("topic", topic), zap.Error(err))
	}
	for _, res := range results {
		if res.Error.Code() != kafka.ErrNoError && res.Error.Code() != kafka.ErrTopicAlreadyExists {
			zap.L().Warn("Topic creation result", zap.String("topic", res.Topic), zap.String("error", res.Error.String()))
		}
	}

	zap.L().Info("Connected to Kafka", zap.String("topic", topic))
	return &Producer{producer: producer, topic: topic}, nil
}

func (p *Producer) SendMessage(_ context.Context, event types.ScreeningEvent) error {
	message, err := json.Marshal(event)
	if err != nil {
		return err
	}

	zap.L().Debug("Sending message to kafka", zap.ByteString("message", message))
	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.Keyword),
		Value:          message,
	}, nil)
}

func (p *Producer) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}
