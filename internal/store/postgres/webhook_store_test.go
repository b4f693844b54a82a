package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x"}))
	assert.Equal(t,
		"postgres://pay:p%40ss@db:5432/cryptopay?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "cryptopay", User: "pay", Password: "p@ss"}),
	)
	assert.Equal(t,
		"postgres://pay:pw@db:6543/cp?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "cp", User: "pay", Password: "pw", SSLMode: "require"}),
	)
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_webhook_events.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS webhook_events")
}

// Runs against a real database when CRYPTOPAY_TEST_POSTGRES_DSN is set.
func TestWebhookStore_Integration(t *testing.T) {
	dsn := os.Getenv("CRYPTOPAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CRYPTOPAY_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	client, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.RunMigrations(ctx))
	require.NoError(t, client.RunMigrations(ctx), "migrations are idempotent")

	store := NewWebhookStore(client.Pool())
	paymentID := "test-" + uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)

	older := domain.WebhookEvent{
		ID: uuid.NewString(), PaymentID: paymentID, Status: "pending", Signature: "s1",
		Payload: json.RawMessage(`{"status":"pending"}`), ReceivedAt: base,
	}
	newer := domain.WebhookEvent{
		ID: uuid.NewString(), PaymentID: paymentID, Status: "success", Signature: "s2",
		Payload: json.RawMessage(`{"status":"success"}`), ReceivedAt: base.Add(time.Second),
	}
	require.NoError(t, store.Insert(ctx, older))
	require.NoError(t, store.Insert(ctx, newer))
	require.NoError(t, store.Insert(ctx, newer))

	events, err := store.ListByPayment(ctx, paymentID, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, newer.ID, events[0].ID)
	assert.JSONEq(t, `{"status":"success"}`, string(events[0].Payload))

	events, err = store.ListByPayment(ctx, paymentID, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, older.ID, events[0].ID)
}
