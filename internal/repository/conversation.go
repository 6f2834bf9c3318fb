package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ridedesk/autobook/internal/model"
)

type ConversationRepository interface {
	FindActive(ctx context.Context, phone string, since time.Time) (*model.Conversation, error)
	Create(ctx context.Context, phone string, at, staleBefore time.Time) (*model.Conversation, error)
	Advance(ctx context.Context, params model.AdvanceConversationParams) (*model.Conversation, error)
	Deactivate(ctx context.Context, phone string) (int64, error)
	ListActive(ctx context.Context, since time.Time, limit, offset int) ([]model.Conversation, error)
	CountActive(ctx context.Context, since time.Time) (int, error)
	DeactivateStale(ctx context.Context, before time.Time) (int64, error)
}

type conversationRepo struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

// FindActive ignores active rows whose last message is older than since.
func (r *conversationRepo) FindActive(ctx context.Context, phone string, since time.Time) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations
		WHERE phone = $1 AND is_active AND last_message_at >= $2
	`, phone, since)
	return HandleNotFound(&conv, err)
}

// Create starts a conversation at the first step. Expired rows for the phone
// are retired first so the one-active-per-phone index only guards live ones.
// When a concurrent request wins the insert, its row is returned instead.
func (r *conversationRepo) Create(ctx context.Context, phone string, at, staleBefore time.Time) (*model.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET is_active = FALSE, updated_at = NOW()
		WHERE phone = $1 AND is_active AND last_message_at < $2
	`, phone, staleBefore); err != nil {
		return nil, err
	}

	var conv model.Conversation
	err = tx.GetContext(ctx, &conv, `
		INSERT INTO conversations (phone, step, ride_data, last_message_at)
		VALUES ($1, $2, '{}', $3)
		ON CONFLICT (phone) WHERE is_active DO NOTHING
		RETURNING *
	`, phone, model.StepWaitingForFrom, at)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.GetContext(ctx, &conv, `
			SELECT * FROM conversations WHERE phone = $1 AND is_active
		`, phone)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &conv, nil
}

// Advance applies the update only if the row is still active at the expected
// version, returning ErrStale otherwise.
func (r *conversationRepo) Advance(ctx context.Context, params model.AdvanceConversationParams) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		UPDATE conversations SET
			step = $3,
			ride_data = $4,
			last_message_at = $5,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2 AND is_active
		RETURNING *
	`, params.ID, params.ExpectedVersion, params.Step, params.RideData, params.At)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStale
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) Deactivate(ctx context.Context, phone string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET is_active = FALSE, updated_at = NOW()
		WHERE phone = $1 AND is_active
	`, phone)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *conversationRepo) ListActive(ctx context.Context, since time.Time, limit, offset int) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT * FROM conversations
		WHERE is_active AND last_message_at >= $1
		ORDER BY last_message_at DESC
		LIMIT $2 OFFSET $3
	`, since, limit, offset)
	return convs, err
}

func (r *conversationRepo) CountActive(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM conversations WHERE is_active AND last_message_at >= $1
	`, since)
	return count, err
}

func (r *conversationRepo) DeactivateStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET is_active = FALSE, updated_at = NOW()
		WHERE is_active AND last_message_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
