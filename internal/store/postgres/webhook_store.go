package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

// WebhookStore implements domain.WebhookStore using PostgreSQL.
type WebhookStore struct {
	pool *pgxpool.Pool
}

// NewWebhookStore creates a WebhookStore backed by the given pool.
func NewWebhookStore(pool *pgxpool.Pool) *WebhookStore {
	return &WebhookStore{pool: pool}
}

// Insert stores a verified event. Re-inserting the same id is a no-op.
func (s *WebhookStore) Insert(ctx context.Context, evt domain.WebhookEvent) error {
	const query = `
		INSERT INTO webhook_events (id, payment_id, status, signature, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		evt.ID, evt.PaymentID, evt.Status, evt.Signature, []byte(evt.Payload), evt.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert webhook event %s: %w", evt.ID, err)
	}
	return nil
}

// ListByPayment returns events for paymentID, newest first.
func (s *WebhookStore) ListByPayment(ctx context.Context, paymentID string, opts domain.ListOpts) ([]domain.WebhookEvent, error) {
	query := `
		SELECT id, payment_id, status, signature, payload, received_at
		FROM webhook_events
		WHERE payment_id = $1
		ORDER BY received_at DESC`
	args := []any{paymentID}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list webhook events for %s: %w", paymentID, err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		var e domain.WebhookEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.Status, &e.Signature, &payload, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan webhook event: %w", err)
		}
		e.Payload = payload
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate webhook events: %w", err)
	}
	return events, nil
}
