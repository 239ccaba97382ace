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

type SettingsRepo struct {
	db *pgxpool.Pool
}

func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{
		db: db,
	}
}

const settingsColumns = `id, max_user_message_length, max_session_duration_minutes, updated_at, updated_by_admin_id`

func (r *SettingsRepo) Get(ctx context.Context) (*domain.ChatSettings, error) {
	query := fmt.Sprintf(`SELECT %s FROM chat_settings ORDER BY id LIMIT 1`, settingsColumns)

	settings, err := r.scanOne(r.db.QueryRow(ctx, query))
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get chat settings: %w", err)
	}

	// Seed a default row. The migration seeds one too; this is the fallback for
	// a wiped table. ON CONFLICT keeps a concurrent seed from duplicating it.
	insert := fmt.Sprintf(`
		INSERT INTO chat_settings (id, max_user_message_length, max_session_duration_minutes, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET id = chat_settings.id
		RETURNING %s`, settingsColumns)

	settings, err = r.scanOne(r.db.QueryRow(ctx, insert,
		domain.DefaultMaxUserMessageLength,
		domain.DefaultMaxSessionDurationMinutes,
		time.Now().UTC(),
	))
	if err != nil {
		return nil, fmt.Errorf("seed chat settings: %w", err)
	}

	return settings, nil
}

func (r *SettingsRepo) UpdateMaxUserMessageLength(ctx context.Context, value int, adminID int64) (*domain.ChatSettings, error) {
	if _, err := r.Get(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE chat_settings
		SET max_user_message_length = $1, updated_at = $2, updated_by_admin_id = $3
		RETURNING %s`, settingsColumns)

	settings, err := r.scanOne(r.db.QueryRow(ctx, query, value, time.Now().UTC(), adminID))
	if err != nil {
		return nil, fmt.Errorf("update max user message length: %w", err)
	}

	return settings, nil
}

func (r *SettingsRepo) UpdateMaxSessionDurationMinutes(ctx context.Context, value int, adminID int64) (*domain.ChatSettings, error) {
	if _, err := r.Get(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE chat_settings
		SET max_session_duration_minutes = $1, updated_at = $2, updated_by_admin_id = $3
		RETURNING %s`, settingsColumns)

	settings, err := r.scanOne(r.db.QueryRow(ctx, query, value, time.Now().UTC(), adminID))
	if err != nil {
		return nil, fmt.Errorf("update max session duration: %w", err)
	}

	return settings, nil
}

func (r *SettingsRepo) scanOne(row pgx.Row) (*domain.ChatSettings, error) {
	var settings domain.ChatSettings
	err := row.Scan(
		&settings.ID,
		&settings.MaxUserMessageLength,
		&settings.MaxSessionDurationMinutes,
		&settings.UpdatedAt,
		&settings.UpdatedByAdminID,
	)
	if err != nil {
		return nil, err
	}

	return &settings, nil
}
