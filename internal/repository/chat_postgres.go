package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"livechat/internal/domain"
)

type ChatRepositoryImpl struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepositoryImpl {
	return &ChatRepositoryImpl{db: db}
}

const sessionColumns = `id, session_key, user_id, admin_id, is_active, created_at, started_at, max_duration_minutes, last_user_message_at, idle_termination_sent_at`

// lookupSession wraps scanSession for single-row lookups where an empty result
// is a normal outcome, not a storage failure.
func lookupSession(row pgx.Row) (*domain.ChatSession, error) {
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return session, err
}

func scanSession(row pgx.Row) (*domain.ChatSession, error) {
	var session domain.ChatSession
	err := row.Scan(
		&session.ID,
		&session.SessionKey,
		&session.UserID,
		&session.AdminID,
		&session.IsActive,
		&session.CreatedAt,
		&session.StartedAt,
		&session.MaxDurationMinutes,
		&session.LastUserMessageAt,
		&session.IdleTerminationSentAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Chat sessions

func (r *ChatRepositoryImpl) CreateSession(ctx context.Context, dto CreateChatSessionDTO) (*domain.ChatSession, error) {
	query := fmt.Sprintf(`
		INSERT INTO chat_sessions (session_key, user_id, admin_id, is_active, started_at, max_duration_minutes, last_user_message_at)
		VALUES ($1, $2, $3, true, $4, $5, NOW())
		RETURNING %s`, sessionColumns)

	return scanSession(r.db.QueryRow(ctx, query, dto.SessionKey, dto.UserID, dto.AdminID, dto.StartedAt, dto.MaxDurationMinutes))
}

func (r *ChatRepositoryImpl) GetActiveSessionByKey(ctx context.Context, sessionKey string) (*domain.ChatSession, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM chat_sessions
		WHERE is_active = true AND session_key = $1`, sessionColumns)

	return lookupSession(r.db.QueryRow(ctx, query, sessionKey))
}

func (r *ChatRepositoryImpl) GetActiveSessionByUser(ctx context.Context, userID int64) (*domain.ChatSession, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM chat_sessions
		WHERE is_active = true AND user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, sessionColumns)

	return lookupSession(r.db.QueryRow(ctx, query, userID))
}

func (r *ChatRepositoryImpl) GetActiveSessionForAdmin(ctx context.Context, userID, adminID int64) (*domain.ChatSession, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM chat_sessions
		WHERE is_active = true AND user_id = $1 AND (admin_id = $2 OR admin_id IS NULL)
		ORDER BY created_at DESC
		LIMIT 1`, sessionColumns)

	return lookupSession(r.db.QueryRow(ctx, query, userID, adminID))
}

func (r *ChatRepositoryImpl) ListActiveSessionsForAdmin(ctx context.Context, adminID int64) ([]domain.ChatSession, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM chat_sessions
		WHERE is_active = true AND (admin_id = $1 OR admin_id IS NULL)`, sessionColumns)

	rows, err := r.db.Query(ctx, query, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	return sessions, rows.Err()
}

func (r *ChatRepositoryImpl) ClaimSession(ctx context.Context, sessionID, adminID int64) (bool, error) {
	query := `
		UPDATE chat_sessions
		SET admin_id = $1
		WHERE id = $2 AND is_active = true AND admin_id IS NULL`

	tag, err := r.db.Exec(ctx, query, adminID, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ChatRepositoryImpl) UpdateSessionTimer(ctx context.Context, sessionID int64, startedAt *time.Time, maxDurationMinutes int) error {
	query := `
		UPDATE chat_sessions
		SET started_at = COALESCE(started_at, $1), max_duration_minutes = $2
		WHERE id = $3`

	_, err := r.db.Exec(ctx, query, startedAt, maxDurationMinutes, sessionID)
	return err
}

func (r *ChatRepositoryImpl) TouchLastUserMessage(ctx context.Context, sessionID int64, at time.Time) error {
	query := `UPDATE chat_sessions SET last_user_message_at = $1 WHERE id = $2`

	_, err := r.db.Exec(ctx, query, at, sessionID)
	return err
}

func (r *ChatRepositoryImpl) CloseSession(ctx context.Context, sessionID int64) error {
	query := `UPDATE chat_sessions SET is_active = false WHERE id = $1`

	_, err := r.db.Exec(ctx, query, sessionID)
	return err
}

// Messages

func (r *ChatRepositoryImpl) CreateMessage(ctx context.Context, dto CreateMessageDTO) (*domain.Message, error) {
	query := `
		INSERT INTO messages (chat_session_id, sender_id, content, message_type, is_seen)
		VALUES ($1, $2, $3, $4, false)
		RETURNING id, chat_session_id, sender_id, content, message_type, is_seen, created_at`

	var message domain.Message
	err := r.db.QueryRow(ctx, query, dto.ChatSessionID, dto.SenderID, dto.Content, dto.Type).Scan(
		&message.ID,
		&message.ChatSessionID,
		&message.SenderID,
		&message.Content,
		&message.Type,
		&message.IsSeen,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

func (r *ChatRepositoryImpl) ListHistory(ctx context.Context, sessionID int64, limit int) ([]domain.ChatHistoryItem, error) {
	// The cap keeps the most recent messages; the outer query restores
	// chronological order. Serial id is the tiebreak for messages persisted
	// within the same tick.
	query := `
		SELECT id, content, created_at, is_seen, role, sender_id, message_type
		FROM (
			SELECT m.id, m.content, m.created_at, m.is_seen, u.role, m.sender_id, m.message_type
			FROM messages m
			LEFT JOIN users u ON m.sender_id = u.id
			WHERE m.chat_session_id = $1
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ChatHistoryItem
	for rows.Next() {
		var item domain.ChatHistoryItem
		err := rows.Scan(
			&item.ID,
			&item.Content,
			&item.CreatedAt,
			&item.IsSeen,
			&item.Role,
			&item.SenderID,
			&item.Type,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *ChatRepositoryImpl) MarkMessagesSeen(ctx context.Context, sessionID, senderID int64) ([]int64, error) {
	query := `
		UPDATE messages
		SET is_seen = true
		WHERE chat_session_id = $1 AND sender_id = $2 AND is_seen = false
		RETURNING id`

	rows, err := r.db.Query(ctx, query, sessionID, senderID)
	if err != nil {
		return nil, err
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

func (r *ChatRepositoryImpl) CountUnseenFromSender(ctx context.Context, sessionID, senderID int64) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE chat_session_id = $1 AND sender_id = $2 AND is_seen = false`

	var count int64
	err := r.db.QueryRow(ctx, query, sessionID, senderID).Scan(&count)
	return count, err
}

func (r *ChatRepositoryImpl) UnseenCountsForAdmin(ctx context.Context, adminID int64) (map[int64]int64, error) {
	query := `
		SELECT m.chat_session_id, COUNT(*)
		FROM messages m
		JOIN chat_sessions cs ON m.chat_session_id = cs.id
		WHERE cs.is_active = true
		  AND (cs.admin_id = $1 OR cs.admin_id IS NULL)
		  AND m.is_seen = false
		  AND m.sender_id = cs.user_id
		GROUP BY m.chat_session_id`

	rows, err := r.db.Query(ctx, query, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var sessionID, count int64
		if err := rows.Scan(&sessionID, &count); err != nil {
			return nil, err
		}
		counts[sessionID] = count
	}

	return counts, rows.Err()
}

// Idle termination

func (r *ChatRepositoryImpl) ListIdleTerminationCandidates(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	query := `
		SELECT session_key
		FROM chat_sessions
		WHERE is_active = true
		  AND idle_termination_sent_at IS NULL
		  AND last_user_message_at < $1
		ORDER BY last_user_message_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

func (r *ChatRepositoryImpl) TerminateIdleSession(ctx context.Context, sessionKey string, senderID int64, content string, cutoff time.Time) (*domain.Message, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin idle termination: %w", err)
	}
	defer tx.Rollback(ctx)

	// Re-check idleness at execution time; the candidate list may be stale.
	var sessionID int64
	err = tx.QueryRow(ctx, `
		UPDATE chat_sessions
		SET is_active = false, idle_termination_sent_at = NOW()
		WHERE session_key = $1
		  AND is_active = true
		  AND idle_termination_sent_at IS NULL
		  AND last_user_message_at < $2
		RETURNING id`, sessionKey, cutoff).Scan(&sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("close idle session: %w", err)
	}

	var message domain.Message
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (chat_session_id, sender_id, content, message_type, is_seen)
		VALUES ($1, $2, $3, $4, false)
		RETURNING id, chat_session_id, sender_id, content, message_type, is_seen, created_at`,
		sessionID, senderID, content, domain.MessageTypeSystem).Scan(
		&message.ID,
		&message.ChatSessionID,
		&message.SenderID,
		&message.Content,
		&message.Type,
		&message.IsSeen,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert termination notice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit idle termination: %w", err)
	}

	return &message, nil
}
