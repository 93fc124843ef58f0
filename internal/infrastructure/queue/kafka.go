package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"ahLedgerApp/internal/app/dto"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	BatchSize     int
	BatchTimeout  int
}

// UploadMessage is one (realm, character) bucket set on the wire.
type UploadMessage struct {
	Realm     string         `json:"realm"`
	Character string         `json:"character"`
	Buckets   dto.BucketsDTO `json:"buckets"`
}

// UploadEnvelope is a consumed upload plus the bookkeeping the processor
// needs: a commit handle and the payload size for upload metrics.
type UploadEnvelope struct {
	ID        string
	Realm     string
	Character string
	Buckets   dto.BucketsDTO
	Bytes     int
}

// UploadProducer defines interface for publishing upload batches
type UploadProducer interface {
	PublishUpload(ctx context.Context, msg UploadMessage) error
	Close() error
}

// UploadConsumer defines interface for consuming upload batches
type UploadConsumer interface {
	Subscribe(ctx context.Context) (<-chan *UploadEnvelope, error)
	Commit(ctx context.Context, id string) error
	Close() error
}

// KafkaUploadProducer implements UploadProducer using Kafka
type KafkaUploadProducer struct {
	writer *kafka.Writer
}

func NewKafkaUploadProducer(config KafkaConfig) *KafkaUploadProducer {
	writer := &kafka.Writer{
		Addr:  kafka.TCP(config.Brokers...),
		Topic: config.Topic,
		// Hash partitioning keeps one character's uploads ordered.
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaUploadProducer{writer: writer}
}

// PublishUpload sends one upload batch to Kafka, keyed by (realm, character).
func (p *KafkaUploadProducer) PublishUpload(ctx context.Context, msg UploadMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Realm + "/" + msg.Character),
		Value: data,
		Time:  time.Now(),
	})
}

func (p *KafkaUploadProducer) Close() error {
	return p.writer.Close()
}

// commitLog tracks fetched messages through their two states: in flight
// until the processor acknowledges them, then acknowledged and eligible for
// the next batch commit. Messages that were never acknowledged are not
// committed, so a crash or a storage failure leads to redelivery.
type commitLog struct {
	mu       sync.Mutex
	inflight map[string]kafka.Message
	acked    map[string]kafka.Message
}

func newCommitLog() *commitLog {
	return &commitLog{
		inflight: make(map[string]kafka.Message),
		acked:    make(map[string]kafka.Message),
	}
}

func (l *commitLog) track(id string, msg kafka.Message) {
	l.mu.Lock()
	l.inflight[id] = msg
	l.mu.Unlock()
}

func (l *commitLog) ack(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg, ok := l.inflight[id]
	if !ok {
		return fmt.Errorf("message %s not found in flight", id)
	}
	delete(l.inflight, id)
	l.acked[id] = msg
	return nil
}

func (l *commitLog) ackedLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.acked)
}

// takeAcked drains the acknowledged set, leaving in-flight messages alone.
func (l *commitLog) takeAcked() []kafka.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.acked) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(l.acked))
	for _, msg := range l.acked {
		msgs = append(msgs, msg)
	}
	l.acked = make(map[string]kafka.Message)
	return msgs
}

// restore re-queues messages whose batch commit failed.
func (l *commitLog) restore(msgs []kafka.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range msgs {
		l.acked[fmt.Sprintf("%d-%d", msg.Partition, msg.Offset)] = msg
	}
}

// KafkaUploadConsumer implements UploadConsumer using Kafka. Commits are
// explicit and batched, and only cover messages the processor has
// acknowledged; the ingest path is idempotent, so redelivery after a crash
// only produces duplicate-skips.
type KafkaUploadConsumer struct {
	reader       *kafka.Reader
	pending      *commitLog
	batchSize    int
	batchTimeout time.Duration
}

func NewKafkaUploadConsumer(config KafkaConfig) *KafkaUploadConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.ConsumerGroup,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // commits are handled manually
		StartOffset:    kafka.FirstOffset,
	})
	return &KafkaUploadConsumer{
		reader:       reader,
		pending:      newCommitLog(),
		batchSize:    config.BatchSize,
		batchTimeout: time.Duration(config.BatchTimeout) * time.Millisecond,
	}
}

// Subscribe returns a channel of upload envelopes from Kafka.
func (c *KafkaUploadConsumer) Subscribe(ctx context.Context) (<-chan *UploadEnvelope, error) {
	uploadCh := make(chan *UploadEnvelope, 100)

	go c.startBatchCommitter(ctx)

	go func() {
		defer close(uploadCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				msg, err := c.reader.FetchMessage(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Printf("Error fetching message: %v", err)
					}
					return
				}

				var upload UploadMessage
				if err := json.Unmarshal(msg.Value, &upload); err != nil {
					log.Printf("Error unmarshalling upload: %v", err)
					// Commit bad messages to avoid getting stuck
					_ = c.reader.CommitMessages(ctx, msg)
					continue
				}

				id := fmt.Sprintf("%d-%d", msg.Partition, msg.Offset)
				c.pending.track(id, msg)

				env := &UploadEnvelope{
					ID:        id,
					Realm:     upload.Realm,
					Character: upload.Character,
					Buckets:   upload.Buckets,
					Bytes:     len(msg.Value),
				}
				select {
				case <-ctx.Done():
					return
				case uploadCh <- env:
				}
			}
		}
	}()

	return uploadCh, nil
}

// startBatchCommitter periodically commits acknowledged messages in batches.
func (c *KafkaUploadConsumer) startBatchCommitter(ctx context.Context) {
	ticker := time.NewTicker(c.batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final commit with a fresh context, the original is canceled.
			c.commitAcked(context.Background())
			return
		case <-ticker.C:
			c.commitAcked(ctx)
		}
	}
}

func (c *KafkaUploadConsumer) commitAcked(ctx context.Context) {
	msgs := c.pending.takeAcked()
	if len(msgs) == 0 {
		return
	}
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		log.Printf("Error committing batch of %d messages: %v", len(msgs), err)
		c.pending.restore(msgs)
	}
}

// Commit acknowledges that an upload has been processed. The offset is
// committed with the next batch, immediately when the batch is full.
func (c *KafkaUploadConsumer) Commit(ctx context.Context, id string) error {
	if err := c.pending.ack(id); err != nil {
		return err
	}
	if c.pending.ackedLen() >= c.batchSize {
		c.commitAcked(ctx)
	}
	return nil
}

func (c *KafkaUploadConsumer) Close() error {
	c.commitAcked(context.Background())
	return c.reader.Close()
}
