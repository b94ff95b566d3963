// Package publish forwards core logs to Kafka for settlement, tickers and
// depth consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/efreitasn/matchcore/internal/engine"
)

// Header names set on every message. Consumers dedupe on seq.
const (
	HeaderSeq  = "seq"
	HeaderType = "type"
	HeaderKey  = "key"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes logs to a single topic, keyed by product so that each
// product's logs stay ordered within a partition.
type Publisher struct {
	writer messageWriter
}

// New returns a publisher for the given brokers and topic.
func New(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// HandleBatch publishes logs in order. Kafka delivery is at-least-once; a
// retried batch may duplicate messages already written.
func (p *Publisher) HandleBatch(ctx context.Context, logs []engine.Log) error {
	msgs := make([]kafka.Message, 0, len(logs))
	for _, l := range logs {
		m, err := encode(l)
		if err != nil {
			return err
		}
		msgs = append(msgs, m)
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encode(l engine.Log) (kafka.Message, error) {
	val, err := json.Marshal(l)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("publish: encode seq %d: %w", l.Seq, err)
	}
	return kafka.Message{
		Key:   []byte(l.ProductID),
		Value: val,
		Time:  l.Timestamp,
		Headers: []kafka.Header{
			{Key: HeaderSeq, Value: []byte(strconv.FormatUint(l.Seq, 10))},
			{Key: HeaderType, Value: []byte(l.Type)},
			{Key: HeaderKey, Value: []byte(l.Key())},
		},
	}, nil
}
