package worker

// dlq.go: dead letter queue
// Association writes that failed after the transport's retries land here for
// manual inspection. One Redis list per source queue: dlq:{queue}

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DLQPrefix = "dlq:"

	QueueAssociations = "associations"
)

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // ISO 8601
	Attempts      int             `json:"attempts"`
}

// DeadLetterSink receives jobs that could not be completed.
type DeadLetterSink interface {
	Send(ctx context.Context, queue, jobType string, payload any, reason string, attempts int)
}

// RedisDLQ stores dead letters in Redis lists.
type RedisDLQ struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisDLQ(rdb *redis.Client) *RedisDLQ {
	return &RedisDLQ{rdb: rdb, now: time.Now}
}

// Send pushes a failed job to the dead letter queue. Failures to record it are
// logged and swallowed.
func (d *RedisDLQ) Send(ctx context.Context, queue, jobType string, payload any, reason string, attempts int) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal payload")
		return
	}
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       raw,
		Reason:        reason,
		FailedAt:      d.now().UTC().Format(time.RFC3339),
		Attempts:      attempts,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := d.rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push to DLQ")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job moved to dead letter queue")
}

// Length returns the number of entries in a DLQ for monitoring.
func (d *RedisDLQ) Length(ctx context.Context, queue string) (int64, error) {
	return d.rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// Peek returns up to n of the most recent entries without removing them.
func (d *RedisDLQ) Peek(ctx context.Context, queue string, n int64) ([]DLQEntry, error) {
	raw, err := d.rdb.LRange(ctx, DLQPrefix+queue, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DLQEntry, 0, len(raw))
	for _, r := range raw {
		var e DLQEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			log.Warn().Err(err).Str("queue", queue).Msg("dlq: skipping malformed entry")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
