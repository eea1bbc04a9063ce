package storage

import (
	"context"
	"database/sql"

	"github.com/example/bus-tracking/internal/models"
)

type PostgresNotificationStore struct {
	db *sql.DB
}

func NewPostgresNotificationStore(db *sql.DB) *PostgresNotificationStore {
	return &PostgresNotificationStore{db: db}
}

func (p *PostgresNotificationStore) Insert(ctx context.Context, n models.Notification) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO notifications(id, rider_id, message, created_at) VALUES($1, NULLIF($2,''), $3, $4)`,
		n.ID, n.RiderID, n.Message, n.CreatedAt)
	return err
}

func (p *PostgresNotificationStore) List(ctx context.Context, riderID string) ([]models.Notification, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, COALESCE(rider_id, ''), message, created_at
		FROM notifications
		WHERE rider_id IS NULL OR rider_id = $1
		ORDER BY created_at DESC`, riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RiderID, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
