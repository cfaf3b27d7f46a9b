// Package kafka consumes already-normalized raw records from a Kafka
// topic, for providers that push observations through a broker instead of
// publishing files.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/bhawesh96/crmprtd/internal/domain"
)

// consumer is the slice of kafka-go's Reader the record reader needs.
type consumer interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reader consumes raw-record JSON messages from the configured topic.
// Offsets are held back until CommitRead is called, so a batch whose
// database transaction never commits is redelivered on the next run.
type Reader struct {
	consumer consumer
	logger   *slog.Logger
	pending  []kafkago.Message
}

// NewReader creates a consumer for the given brokers, topic, and consumer
// group.
func NewReader(brokers []string, topic, groupID string, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Reader{consumer: r, logger: logger}
}

// FetchBatch reads up to max records, waiting at most wait for the first
// message and draining whatever arrives until the batch fills or the
// window closes. Malformed messages are skipped with a logged reason and
// counted, matching the normalizer contract. Fetched messages join the
// pending set; their offsets commit only when CommitRead is called.
func (r *Reader) FetchBatch(ctx context.Context, max int, wait time.Duration) ([]domain.RawRecord, int, error) {
	deadline, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var recs []domain.RawRecord
	skipped := 0
	for len(recs) < max {
		msg, err := r.consumer.FetchMessage(deadline)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			return nil, skipped, err
		}
		r.pending = append(r.pending, msg)
		rec, err := mapMessageToRecord(msg)
		if err != nil {
			r.logger.Warn("skipping malformed record message",
				"topic", msg.Topic, "partition", msg.Partition,
				"offset", msg.Offset, "error", err)
			skipped++
			continue
		}
		recs = append(recs, rec)
	}
	return recs, skipped, nil
}

// CommitRead commits the offsets of every message fetched since the last
// commit. Call it after the batch's transaction has committed; skipping
// it leaves the messages for redelivery.
func (r *Reader) CommitRead(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.consumer.CommitMessages(ctx, r.pending...); err != nil {
		return err
	}
	r.pending = nil
	return nil
}

// Close shuts down the consumer. Uncommitted offsets are released back to
// the group.
func (r *Reader) Close() error {
	return r.consumer.Close()
}

// mapMessageToRecord deserializes one Kafka message into a raw record.
func mapMessageToRecord(msg kafkago.Message) (domain.RawRecord, error) {
	var rec domain.RawRecord
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		return domain.RawRecord{}, err
	}
	if rec.Time.IsZero() {
		rec.Time = msg.Time
	}
	return rec, nil
}
