package store

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"chatwire/pkg/interfaces"
)

// Friends implements interfaces.FriendDirectory.
type Friends struct {
	s *Store
}

var _ interfaces.FriendDirectory = (*Friends)(nil)

// Add records an accepted friendship between a and b.
func (f *Friends) Add(ctx context.Context, a, b int64) error {
	_, err := f.s.exec(
		`INSERT OR IGNORE INTO friendships (user_id, friend_id, status) VALUES (?, ?, 'ACCEPTED')`,
		a, b)
	if err != nil {
		return fmt.Errorf("failed to add friendship %d-%d: %w", a, b, err)
	}
	return nil
}

// FriendIDsOf lists accepted friends of userID. Friendship rows are
// stored once per pair, so both directions are queried.
func (f *Friends) FriendIDsOf(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := f.s.db.QueryContext(ctx,
		`SELECT friend_id FROM friendships WHERE user_id = ? AND status = 'ACCEPTED'
		 UNION
		 SELECT user_id FROM friendships WHERE friend_id = ? AND status = 'ACCEPTED'`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends of %d: %w", userID, err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lo.Uniq(ids), nil
}
