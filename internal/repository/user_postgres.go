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

type UserRepo struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{
		db: db,
	}
}

func (r *UserRepo) Create(ctx context.Context, dto domain.CreateUserDTO) (int64, error) {
	var id int64
	query := `
		INSERT INTO users (name, email, password_hash, role, is_active, is_online, last_seen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, false, $5, $5, $5)
		RETURNING id
	`

	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, query, dto.Name, dto.Email, dto.Password, dto.Role, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	return id, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT id, name, email, password_hash, role, is_active, is_online, last_seen, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, name, email, password_hash, role, is_active, is_online, last_seen, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	return r.scanOne(r.db.QueryRow(ctx, query, email))
}

func (r *UserRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *UserRepo) ListByRole(ctx context.Context, role domain.UserRole, limit int) ([]domain.User, error) {
	query := `
		SELECT id, name, email, password_hash, role, is_active, is_online, last_seen, created_at, updated_at
		FROM users
		WHERE role = $1
		ORDER BY id
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, role, limit)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.IsActive,
			&user.IsOnline,
			&user.LastSeen,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *UserRepo) UpdateHeartbeat(ctx context.Context, id int64, role domain.UserRole, at time.Time) error {
	// Role is synced in case the persisted column drifted from the token claim.
	query := `
		UPDATE users
		SET is_online = true, last_seen = $1, role = $2, updated_at = $1
		WHERE id = $3
	`

	_, err := r.db.Exec(ctx, query, at, role, id)
	return err
}

func (r *UserRepo) scanOne(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.IsOnline,
		&user.LastSeen,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, err
	}

	return &user, nil
}
