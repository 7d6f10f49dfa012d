package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// Messages implements interfaces.MessageStore for direct messages.
type Messages struct {
	s *Store
}

var _ interfaces.MessageStore = (*Messages)(nil)

// Insert persists msg, assigning its ID, CreatedAt and initial SENT
// status. Persistence happens before any dispatch attempt, so a failed
// delivery never loses the durable record.
func (m *Messages) Insert(ctx context.Context, msg *types.Message) error {
	if msg.ContentType == "" {
		msg.ContentType = types.ContentText
	}
	msg.Status = types.DeliverySent
	msg.CreatedAt = time.Now()
	res, err := m.s.exec(
		`INSERT INTO messages (sender_id, receiver_id, content, content_type, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.SenderID, msg.ReceiverID, msg.Content, msg.ContentType, msg.Status, msg.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	msg.ID, err = res.LastInsertId()
	return err
}

// FindByID loads one message.
func (m *Messages) FindByID(ctx context.Context, id int64) (*types.Message, error) {
	row := m.s.db.QueryRowContext(ctx,
		`SELECT id, sender_id, receiver_id, content, content_type, status, recalled, created_at
		 FROM messages WHERE id = ?`, id)
	return scanMessage(row)
}

// MarkRecalled flags the record recalled. Idempotent at this layer.
func (m *Messages) MarkRecalled(ctx context.Context, id int64) error {
	_, err := m.s.exec(`UPDATE messages SET recalled = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark message %d recalled: %w", id, err)
	}
	return nil
}

// MarkRead advances the message to READ.
func (m *Messages) MarkRead(ctx context.Context, id int64) error {
	_, err := m.s.exec(`UPDATE messages SET status = ? WHERE id = ?`, types.DeliveryRead, id)
	if err != nil {
		return fmt.Errorf("failed to mark message %d read: %w", id, err)
	}
	return nil
}

// FindOfflineFor lists messages that were persisted while the receiver
// had no registered channel: still SENT and not recalled.
func (m *Messages) FindOfflineFor(ctx context.Context, receiverID int64) ([]*types.Message, error) {
	rows, err := m.s.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, content, content_type, status, recalled, created_at
		 FROM messages
		 WHERE receiver_id = ? AND status = ? AND recalled = 0
		 ORDER BY created_at ASC, id ASC`, receiverID, types.DeliverySent)
	if err != nil {
		return nil, fmt.Errorf("failed to query offline messages: %w", err)
	}
	defer rows.Close()

	var out []*types.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// MarkDelivered advances every SENT message for receiverID to
// DELIVERED, called after the offline backlog has been flushed.
func (m *Messages) MarkDelivered(ctx context.Context, receiverID int64) error {
	_, err := m.s.exec(
		`UPDATE messages SET status = ? WHERE receiver_id = ? AND status = ?`,
		types.DeliveryDelivered, receiverID, types.DeliverySent)
	if err != nil {
		return fmt.Errorf("failed to mark messages delivered for %d: %w", receiverID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*types.Message, error) {
	var msg types.Message
	var createdAt int64
	err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content,
		&msg.ContentType, &msg.Status, &msg.Recalled, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	msg.CreatedAt = time.UnixMilli(createdAt)
	return &msg, nil
}
