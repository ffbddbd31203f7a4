package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/rollcall/internal/services/attendance/api/contract"
	"github.com/louisbranch/rollcall/internal/services/attendance/ledger"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives newly recorded attendance.
const DefaultTopic = "attendance.recorded"

// MessageWriter is the subset of kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits one message per newly written record, keyed by
// session id so a session's records stay ordered within a partition.
// Duplicates are not published.
type KafkaPublisher struct {
	writer MessageWriter
	logf   func(format string, args ...any)
}

// NewKafkaWriter builds an asynchronous writer for brokers and topic.
// Delivery failures are reported through logf.
func NewKafkaWriter(brokers []string, topic string, logf func(format string, args ...any)) (*kafka.Writer, error) {
	var addrs []string
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			addrs = append(addrs, broker)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if strings.TrimSpace(topic) == "" {
		topic = DefaultTopic
	}
	if logf == nil {
		logf = log.Printf
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logf("kafka publish failed topic=%s messages=%d err=%v", topic, len(messages), err)
			}
		},
	}, nil
}

// NewKafkaPublisher wraps writer.
func NewKafkaPublisher(writer MessageWriter, logf func(format string, args ...any)) *KafkaPublisher {
	if logf == nil {
		logf = log.Printf
	}
	return &KafkaPublisher{writer: writer, logf: logf}
}

// Admitted implements ledger.Notifier.
func (p *KafkaPublisher) Admitted(ctx context.Context, result ledger.Result) {
	if result.Duplicate {
		return
	}
	value, err := json.Marshal(contract.NewRecord(result.Record))
	if err != nil {
		p.logf("kafka encode failed record_id=%s err=%v", result.Record.ID, err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(result.Record.SessionID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(contract.AdmissionEventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logf("kafka publish failed record_id=%s err=%v", result.Record.ID, err)
	}
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
