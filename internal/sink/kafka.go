package sink

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strconv"

	"github.com/Shopify/sarama"
)

// Kafka publishes frames to a topic keyed by recording session, so one
// session's frames land on one partition in order.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaConfig returns the producer settings used by NewKafka.
func NewKafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "xgrab"
	cfg.Version = sarama.V0_11_0_0 // record headers
	cfg.Producer.Retry.Max = 5
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.MaxMessageBytes = 16 << 20
	return cfg
}

// NewKafka dials brokers with a synchronous producer.
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sarama.Logger = log.New(&slogWriter{logger: logger}, "", 0)

	producer, err := sarama.NewSyncProducer(brokers, NewKafkaConfig())
	if err != nil {
		return nil, fmt.Errorf("connect kafka %v: %w", brokers, err)
	}
	return NewKafkaWithProducer(producer, topic, logger), nil
}

// NewKafkaWithProducer wraps an existing producer. The sink takes ownership.
func NewKafkaWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{producer: producer, topic: topic, logger: logger}
}

func (k *Kafka) Write(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic:     k.topic,
		Key:       sarama.StringEncoder(f.Session),
		Value:     sarama.ByteEncoder(f.Data),
		Timestamp: f.Time,
		Headers: []sarama.RecordHeader{
			{Key: []byte("seq"), Value: []byte(strconv.Itoa(f.Seq))},
			{Key: []byte("width"), Value: []byte(strconv.Itoa(f.Width))},
			{Key: []byte("height"), Value: []byte(strconv.Itoa(f.Height))},
			{Key: []byte("content-type"), Value: []byte(f.Format.MIMEType())},
		},
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish frame %d: %w", f.Seq, err)
	}
	k.logger.Debug("frame published", "topic", k.topic, "seq", f.Seq, "partition", partition, "offset", offset)
	return nil
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}

// slogWriter forwards sarama's standard-library logging at debug level.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	w.logger.Debug(msg, "component", "sarama")
	return len(p), nil
}
