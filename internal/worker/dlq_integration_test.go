//go:build integration

package worker

// Run with: go test -tags integration ./internal/worker/... -v

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/creeyes/crmprueba/internal/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisDLQ_SendAndPeek(t *testing.T) {
	ctx := context.Background()

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(rdURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	dlq := NewRedisDLQ(rdb)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dlq.now = func() time.Time { return fixed }

	dlq.Send(ctx, QueueAssociations, "association_add", deadAssociation{
		LocationID:  "loc-1",
		OriginID:    "prop-1",
		Counterpart: "contact-1",
		Operation:   "add",
	}, "crm: create relation returned 422", 1)
	dlq.Send(ctx, QueueAssociations, "association_remove", deadAssociation{OriginID: "prop-2"}, "boom", 1)

	n, err := dlq.Length(ctx, QueueAssociations)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	entries, err := dlq.Peek(ctx, QueueAssociations, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, "association_remove", entries[0].JobType)
	last := entries[1]
	assert.Equal(t, QueueAssociations, last.OriginalQueue)
	assert.Equal(t, "2026-03-01T12:00:00Z", last.FailedAt)
	assert.Equal(t, 1, last.Attempts)

	var payload deadAssociation
	require.NoError(t, json.Unmarshal(last.Payload, &payload))
	assert.Equal(t, "contact-1", payload.Counterpart)

	// Peek does not consume
	n, err = dlq.Length(ctx, QueueAssociations)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
