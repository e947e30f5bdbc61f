package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
)

// BlockPair records a block and closes any live connection of the pair.
func (s *Store) BlockPair(ctx context.Context, blockerID string, blockedID string, now time.Time) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	blockerID = strings.TrimSpace(blockerID)
	blockedID = strings.TrimSpace(blockedID)
	if blockerID == "" || blockedID == "" {
		return nil, fmt.Errorf("both user ids are required")
	}
	if blockerID == blockedID {
		return nil, fmt.Errorf("users cannot block themselves")
	}
	low, high := domain.PairKey(blockerID, blockedID)

	var affected []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blocks (blocker_id, blocked_id, created_at) VALUES (?, ?, ?)
			 ON CONFLICT(blocker_id, blocked_id) DO NOTHING`,
			blockerID,
			blockedID,
			toMillis(now),
		); err != nil {
			return fmt.Errorf("insert block: %w", err)
		}

		rows, err := tx.QueryContext(ctx,
			`UPDATE connections SET status = 'blocked', updated_at = ?
			 WHERE pair_low = ? AND pair_high = ? AND status IN ('pending', 'accepted')
			 RETURNING id`,
			toMillis(now),
			low,
			high,
		)
		if err != nil {
			return fmt.Errorf("block connections: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var connectionID string
			if err := rows.Scan(&connectionID); err != nil {
				return fmt.Errorf("scan blocked connection: %w", err)
			}
			affected = append(affected, connectionID)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

// IsBlocked reports whether either user blocked the other.
func (s *Store) IsBlocked(ctx context.Context, userA string, userB string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	return isBlocked(ctx, s.sqlDB, strings.TrimSpace(userA), strings.TrimSpace(userB))
}

func isBlocked(ctx context.Context, q queryer, userA string, userB string) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM blocks
		   WHERE (blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)
		 )`,
		userA,
		userB,
		userB,
		userA,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return exists == 1, nil
}
