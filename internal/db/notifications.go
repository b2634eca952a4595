package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"akiverse/internal/arcade"
)

// NotificationWriter stores one notification row per recipient for clients
// to poll.
type NotificationWriter struct {
	pool *pgxpool.Pool
}

func NewNotificationWriter(pool *pgxpool.Pool) *NotificationWriter {
	return &NotificationWriter{pool: pool}
}

func (w *NotificationWriter) Notify(ctx context.Context, recipient string, event arcade.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	var gameCenterID *string
	if event.GameCenterID != "" {
		gameCenterID = &event.GameCenterID
	}
	_, err = w.pool.Exec(ctx, `
		INSERT INTO arcade.notifications (id, user_id, kind, arcade_machine_id, game_center_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), recipient, string(event.Kind), event.ArcadeMachineID, gameCenterID, payload, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
