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

// Groups implements interfaces.GroupDirectory.
type Groups struct {
	s *Store
}

var _ interfaces.GroupDirectory = (*Groups)(nil)

// Create inserts a group and returns its id.
func (g *Groups) Create(ctx context.Context, name string) (int64, error) {
	res, err := g.s.exec(`INSERT INTO chat_groups (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create group %q: %w", name, err)
	}
	return res.LastInsertId()
}

// AddMember adds userID to the group.
func (g *Groups) AddMember(ctx context.Context, groupID, userID int64) error {
	_, err := g.s.exec(
		`INSERT OR IGNORE INTO group_members (group_id, user_id, muted) VALUES (?, ?, 0)`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to add member %d to group %d: %w", userID, groupID, err)
	}
	return nil
}

// SetMuted flips the mute flag for a member.
func (g *Groups) SetMuted(ctx context.Context, groupID, userID int64, muted bool) error {
	_, err := g.s.exec(
		`UPDATE group_members SET muted = ? WHERE group_id = ? AND user_id = ?`,
		muted, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to set mute for member %d in group %d: %w", userID, groupID, err)
	}
	return nil
}

// IsMember reports current membership.
func (g *Groups) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	row := g.s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return n > 0, nil
}

// MemberIDs returns the current member id list. Resolved at send time;
// fanout is not snapshot-isolated against concurrent membership
// changes.
func (g *Groups) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := g.s.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of group %d: %w", groupID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SendMessage applies the member and mute checks, then persists. The
// checks run before the insert so a rejected send leaves no record.
// Every transport that writes into a group goes through here.
func (g *Groups) SendMessage(ctx context.Context, groupID, senderID int64, content string, ct types.ContentType) (*types.GroupMessage, error) {
	row := g.s.db.QueryRowContext(ctx,
		`SELECT muted FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, senderID)
	var muted bool
	if err := row.Scan(&muted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrNotMember
		}
		return nil, fmt.Errorf("failed to check sender membership: %w", err)
	}
	if muted {
		return nil, interfaces.ErrMuted
	}

	if ct == "" {
		ct = types.ContentText
	}
	msg := &types.GroupMessage{
		GroupID:     groupID,
		SenderID:    senderID,
		Content:     content,
		ContentType: ct,
		CreatedAt:   time.Now(),
	}
	res, err := g.s.exec(
		`INSERT INTO group_messages (group_id, sender_id, content, content_type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.GroupID, msg.SenderID, msg.Content, msg.ContentType, msg.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to insert group message: %w", err)
	}
	msg.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// FindMessage loads one group message.
func (g *Groups) FindMessage(ctx context.Context, id int64) (*types.GroupMessage, error) {
	row := g.s.db.QueryRowContext(ctx,
		`SELECT id, group_id, sender_id, content, content_type, recalled, created_at
		 FROM group_messages WHERE id = ?`, id)
	var msg types.GroupMessage
	var createdAt int64
	err := row.Scan(&msg.ID, &msg.GroupID, &msg.SenderID, &msg.Content,
		&msg.ContentType, &msg.Recalled, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to find group message %d: %w", id, err)
	}
	msg.CreatedAt = time.UnixMilli(createdAt)
	return &msg, nil
}

// MarkRecalled flags the group message recalled. Idempotent.
func (g *Groups) MarkRecalled(ctx context.Context, id int64) error {
	_, err := g.s.exec(`UPDATE group_messages SET recalled = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark group message %d recalled: %w", id, err)
	}
	return nil
}

// RecordSystemNotice persists a server-originated notice in the group
// timeline (member joined, member removed, and so on).
func (g *Groups) RecordSystemNotice(ctx context.Context, groupID int64, content string) error {
	_, err := g.s.exec(
		`INSERT INTO group_messages (group_id, sender_id, content, content_type, created_at)
		 VALUES (?, 0, ?, ?, ?)`,
		groupID, content, types.ContentSystem, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record system notice in group %d: %w", groupID, err)
	}
	return nil
}
