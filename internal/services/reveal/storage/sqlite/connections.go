package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/storage"
)

const connectionColumns = `id, requester_id, recipient_id, connection_type, status, request_message,
	verification_code, code_expires_at, code_attempts, reveal_stage, message_count,
	last_consent_request, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (domain.Connection, error) {
	var (
		c                  domain.Connection
		connType, status   string
		stage              string
		codeExpiresAt      sql.NullInt64
		lastConsentRequest sql.NullInt64
		createdAt          int64
		updatedAt          int64
	)
	if err := row.Scan(
		&c.ID,
		&c.RequesterID,
		&c.RecipientID,
		&connType,
		&status,
		&c.RequestMessage,
		&c.VerificationCode,
		&codeExpiresAt,
		&c.CodeAttempts,
		&stage,
		&c.MessageCount,
		&lastConsentRequest,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Connection{}, err
	}
	c.Type = domain.ConnectionType(connType)
	c.Status = domain.Status(status)
	c.RevealStage = domain.Stage(stage)
	c.CodeExpiresAt = fromNullMillis(codeExpiresAt)
	c.LastConsentRequest = fromNullMillis(lastConsentRequest)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

func loadConsent(ctx context.Context, q queryer, connection *domain.Connection) error {
	rows, err := q.QueryContext(ctx,
		`SELECT stage, state, updated_at FROM connection_consents WHERE connection_id = ?`,
		connection.ID,
	)
	if err != nil {
		return fmt.Errorf("load consent: %w", err)
	}
	defer rows.Close()

	connection.Consent = make(map[domain.Stage]domain.Consent, 4)
	for rows.Next() {
		var stage, state string
		var updatedAt int64
		if err := rows.Scan(&stage, &state, &updatedAt); err != nil {
			return fmt.Errorf("scan consent: %w", err)
		}
		connection.Consent[domain.Stage(stage)] = domain.Consent{
			State:     domain.ConsentState(state),
			UpdatedAt: fromMillis(updatedAt),
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load consent: %w", err)
	}
	return nil
}

func (s *Store) queryConnections(ctx context.Context, op string, query string, args ...any) ([]domain.Connection, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var out []domain.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	_ = rows.Close()

	for i := range out {
		if err := loadConsent(ctx, s.sqlDB, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CreateConnection inserts a pending connection with empty consent entries.
func (s *Store) CreateConnection(ctx context.Context, connection domain.Connection) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	requesterID := strings.TrimSpace(connection.RequesterID)
	recipientID := strings.TrimSpace(connection.RecipientID)
	if connection.ID == "" || requesterID == "" || recipientID == "" {
		return fmt.Errorf("connection id and both user ids are required")
	}
	if requesterID == recipientID {
		return fmt.Errorf("requester and recipient must differ")
	}
	low, high := domain.PairKey(requesterID, recipientID)
	stage := connection.RevealStage
	if stage == "" {
		stage = domain.StageShadow
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		blocked, err := isBlocked(ctx, tx, requesterID, recipientID)
		if err != nil {
			return err
		}
		if blocked {
			return storage.ErrForbidden
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO connections (`+connectionColumns+`, pair_low, pair_high)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			connection.ID,
			requesterID,
			recipientID,
			string(connection.Type),
			string(connection.Status),
			connection.RequestMessage,
			connection.VerificationCode,
			toNullMillis(connection.CodeExpiresAt),
			connection.CodeAttempts,
			string(stage),
			connection.MessageCount,
			toNullMillis(connection.LastConsentRequest),
			toMillis(connection.CreatedAt),
			toMillis(connection.UpdatedAt),
			low,
			high,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrDuplicate
			}
			return fmt.Errorf("insert connection: %w", err)
		}

		for _, consentStage := range domain.ConsentStages() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO connection_consents (connection_id, stage, state, updated_at) VALUES (?, ?, ?, ?)`,
				connection.ID,
				string(consentStage),
				string(domain.ConsentNone),
				toMillis(connection.CreatedAt),
			); err != nil {
				return fmt.Errorf("seed consent %s: %w", consentStage, err)
			}
		}
		return nil
	})
}

// GetConnection returns one connection with its consent entries.
func (s *Store) GetConnection(ctx context.Context, connectionID string) (domain.Connection, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Connection{}, err
	}
	return getConnection(ctx, s.sqlDB, connectionID)
}

func getConnection(ctx context.Context, q queryer, connectionID string) (domain.Connection, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE id = ?`,
		strings.TrimSpace(connectionID),
	)
	c, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Connection{}, storage.ErrNotFound
		}
		return domain.Connection{}, fmt.Errorf("get connection: %w", err)
	}
	if err := loadConsent(ctx, q, &c); err != nil {
		return domain.Connection{}, err
	}
	return c, nil
}

// FindActiveBetween returns the pending or accepted connection for a pair.
func (s *Store) FindActiveBetween(ctx context.Context, userA string, userB string) (domain.Connection, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Connection{}, err
	}
	low, high := domain.PairKey(strings.TrimSpace(userA), strings.TrimSpace(userB))
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE pair_low = ? AND pair_high = ? AND status IN ('pending', 'accepted')`,
		low,
		high,
	)
	c, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Connection{}, storage.ErrNotFound
		}
		return domain.Connection{}, fmt.Errorf("find active connection: %w", err)
	}
	if err := loadConsent(ctx, s.sqlDB, &c); err != nil {
		return domain.Connection{}, err
	}
	return c, nil
}

// CountRequestsSince counts requests created by requesterID at or after since.
func (s *Store) CountRequestsSince(ctx context.Context, requesterID string, since time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM connections WHERE requester_id = ? AND created_at >= ?`,
		strings.TrimSpace(requesterID),
		toMillis(since),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return count, nil
}

// TransitionStatus swaps the status when it still equals from.
func (s *Store) TransitionStatus(ctx context.Context, connectionID string, from domain.Status, to domain.Status, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("transition %s -> %s is not allowed", from, to)
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE connections SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to),
		toMillis(now),
		connectionID,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}
	return requireOne(result, "transition status")
}

// AcceptConnection moves a pending connection to accepted.
func (s *Store) AcceptConnection(ctx context.Context, connectionID string, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE connections
		 SET status = 'accepted', reveal_stage = 'shadow', message_count = 0,
		     verification_code = '', code_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		toMillis(now),
		connectionID,
	)
	if err != nil {
		return fmt.Errorf("accept connection: %w", err)
	}
	return requireOne(result, "accept connection")
}

// RedeemCode accepts a known connection whose code is still live.
func (s *Store) RedeemCode(ctx context.Context, connectionID string, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE connections
		 SET status = 'accepted', reveal_stage = 'shadow', message_count = 0,
		     verification_code = '', code_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND status = 'pending' AND connection_type = 'known'
		   AND verification_code <> '' AND code_attempts < 3 AND code_expires_at > ?`,
		toMillis(now),
		connectionID,
		toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("redeem code: %w", err)
	}
	return requireOne(result, "redeem code")
}

// RecordFailedCodeAttempt increments the attempt counter of a live code.
func (s *Store) RecordFailedCodeAttempt(ctx context.Context, connectionID string, now time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var attempts int
	err := s.sqlDB.QueryRowContext(ctx,
		`UPDATE connections
		 SET code_attempts = code_attempts + 1, updated_at = ?
		 WHERE id = ? AND status = 'pending' AND verification_code <> ''
		   AND code_attempts < 3 AND code_expires_at > ?
		 RETURNING code_attempts`,
		toMillis(now),
		connectionID,
		toMillis(now),
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrConflict
		}
		return 0, fmt.Errorf("record failed code attempt: %w", err)
	}
	return attempts, nil
}

// ReplaceCode issues a fresh code for a pending known connection.
func (s *Store) ReplaceCode(ctx context.Context, connectionID string, code string, expiresAt time.Time, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE connections
		 SET verification_code = ?, code_expires_at = ?, code_attempts = 0, updated_at = ?
		 WHERE id = ? AND status = 'pending' AND connection_type = 'known'`,
		code,
		toMillis(expiresAt),
		toMillis(now),
		connectionID,
	)
	if err != nil {
		return fmt.Errorf("replace code: %w", err)
	}
	return requireOne(result, "replace code")
}

// ListPendingKnownForRecipient lists known requests awaiting a code from recipientID.
func (s *Store) ListPendingKnownForRecipient(ctx context.Context, recipientID string) ([]domain.Connection, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryConnections(ctx, "list pending known",
		`SELECT `+connectionColumns+` FROM connections
		 WHERE recipient_id = ? AND status = 'pending' AND connection_type = 'known'
		 ORDER BY created_at ASC, id ASC`,
		strings.TrimSpace(recipientID),
	)
}

// ListActiveConnections lists accepted connections for a member, most recently active first.
func (s *Store) ListActiveConnections(ctx context.Context, userID string) ([]domain.Connection, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	return s.queryConnections(ctx, "list active connections",
		`SELECT `+connectionColumns+` FROM connections
		 WHERE status = 'accepted' AND (requester_id = ? OR recipient_id = ?)
		 ORDER BY updated_at DESC, id ASC`,
		userID,
		userID,
	)
}

// ListIncomingRequests lists pending requests addressed to recipientID, newest first.
func (s *Store) ListIncomingRequests(ctx context.Context, recipientID string) ([]domain.Connection, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryConnections(ctx, "list incoming requests",
		`SELECT `+connectionColumns+` FROM connections
		 WHERE recipient_id = ? AND status = 'pending'
		 ORDER BY created_at DESC, id ASC`,
		strings.TrimSpace(recipientID),
	)
}

// IncrementMessageCount bumps message_count on an accepted connection.
func (s *Store) IncrementMessageCount(ctx context.Context, connectionID string, now time.Time) (domain.Connection, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Connection{}, err
	}
	var out domain.Connection
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE connections SET message_count = message_count + 1, updated_at = ?
			 WHERE id = ? AND status = 'accepted'`,
			toMillis(now),
			connectionID,
		)
		if err != nil {
			return fmt.Errorf("increment message count: %w", err)
		}
		if err := requireOne(result, "increment message count"); err != nil {
			return err
		}
		out, err = getConnection(ctx, tx, connectionID)
		return err
	})
	if err != nil {
		return domain.Connection{}, err
	}
	return out, nil
}

// AdvanceStage swaps reveal_stage when it still equals from. Pending consent
// requests for stages up to and including to are reset in the same
// transaction; mutual entries are kept.
func (s *Store) AdvanceStage(ctx context.Context, connectionID string, from domain.Stage, to domain.Stage, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if to.Index() <= from.Index() {
		return fmt.Errorf("stage %s does not follow %s", to, from)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE connections SET reveal_stage = ?, updated_at = ?
			 WHERE id = ? AND reveal_stage = ? AND status = 'accepted'`,
			string(to),
			toMillis(now),
			connectionID,
			string(from),
		)
		if err != nil {
			return fmt.Errorf("advance stage: %w", err)
		}
		if err := requireOne(result, "advance stage"); err != nil {
			return err
		}
		for _, stage := range domain.ConsentStages() {
			if stage.Index() > to.Index() {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE connection_consents SET state = ?, updated_at = ?
				 WHERE connection_id = ? AND stage = ? AND state IN (?, ?)`,
				string(domain.ConsentNone),
				toMillis(now),
				connectionID,
				string(stage),
				string(domain.ConsentRequestedByRequester),
				string(domain.ConsentRequestedByRecipient),
			); err != nil {
				return fmt.Errorf("clear passed consent: %w", err)
			}
		}
		return nil
	})
}

// SetConsent swaps one consent entry on an accepted connection.
func (s *Store) SetConsent(ctx context.Context, connectionID string, stage domain.Stage, from domain.ConsentState, to domain.ConsentState, now time.Time, touchRequest bool) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE connection_consents SET state = ?, updated_at = ?
			 WHERE connection_id = ? AND stage = ? AND state = ?
			   AND EXISTS (SELECT 1 FROM connections WHERE id = ? AND status = 'accepted')`,
			string(to),
			toMillis(now),
			connectionID,
			string(stage),
			string(from),
			connectionID,
		)
		if err != nil {
			return fmt.Errorf("set consent: %w", err)
		}
		if err := requireOne(result, "set consent"); err != nil {
			return err
		}
		if !touchRequest {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE connections SET last_consent_request = ?, updated_at = ? WHERE id = ?`,
			toMillis(now),
			toMillis(now),
			connectionID,
		); err != nil {
			return fmt.Errorf("touch consent request: %w", err)
		}
		return nil
	})
}
