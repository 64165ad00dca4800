package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/evercare/careshift/pkg/db"
)

// insertNotification writes one notification inside an open transaction so
// delivery is paired exactly with the committed state transition.
func insertNotification(ctx context.Context, tx pgx.Tx, n *db.Notification) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO notification (id, user_id, group_id, elder_id, type, title, message,
		                          read, dismissed, action_required, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, n.ID, n.UserID, n.GroupID, n.ElderID, n.Type, n.Title, n.Message,
		n.Read, n.Dismissed, n.ActionRequired, n.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListNotifications retrieves a user's notifications, newest first.
func (d *DB) ListNotifications(ctx context.Context, userID string) ([]db.Notification, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, user_id, group_id, elder_id, type, title, message,
		       read, dismissed, action_required, created_at
		FROM notification
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []db.Notification
	for rows.Next() {
		var n db.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.GroupID, &n.ElderID, &n.Type, &n.Title, &n.Message,
			&n.Read, &n.Dismissed, &n.ActionRequired, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}
