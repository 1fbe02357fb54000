package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/backdrop/internal/domain"
)

const compositeColumns = `
	id, user_id, image_url, background_url, position, status,
	bucket, object_key, public_url, width, height,
	error_message, created_at, updated_at, completed_at`

type compositeRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewCompositeRepository(db *dbpg.DB, strategy retry.Strategy) domain.CompositeRepository {
	return &compositeRepository{
		db:       db,
		strategy: strategy,
	}
}

func (r *compositeRepository) Create(ctx context.Context, c *domain.Composite) error {
	query := `
		INSERT INTO composites (` + compositeColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		c.ID,
		c.UserID,
		c.ImageURL,
		c.BackgroundURL,
		nullString(string(c.Position)),
		c.Status,
		nullString(c.Upload.Bucket),
		nullString(c.Upload.ObjectKey),
		nullString(c.Upload.PublicURL),
		nullInt(c.Width),
		nullInt(c.Height),
		nullString(c.ErrorMessage),
		c.CreatedAt,
		c.UpdatedAt,
		c.CompletedAt,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("composite_id", c.ID).Msg("failed to create composite")
		return fmt.Errorf("create composite: %w", err)
	}

	zlog.Logger.Info().Str("composite_id", c.ID).Str("status", string(c.Status)).Msg("composite created")
	return nil
}

func (r *compositeRepository) FindByID(ctx context.Context, id string) (*domain.Composite, error) {
	query := `SELECT ` + compositeColumns + ` FROM composites WHERE id = $1`

	c, err := scanComposite(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCompositeNotFound
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Str("composite_id", id).Msg("failed to find composite")
		return nil, fmt.Errorf("find composite: %w", err)
	}
	return c, nil
}

func (r *compositeRepository) Update(ctx context.Context, c *domain.Composite) error {
	query := `
		UPDATE composites
		SET status = $2,
		    bucket = $3,
		    object_key = $4,
		    public_url = $5,
		    width = $6,
		    height = $7,
		    error_message = $8,
		    completed_at = $9,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		c.ID,
		c.Status,
		nullString(c.Upload.Bucket),
		nullString(c.Upload.ObjectKey),
		nullString(c.Upload.PublicURL),
		nullInt(c.Width),
		nullInt(c.Height),
		nullString(c.ErrorMessage),
		c.CompletedAt,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("composite_id", c.ID).Msg("failed to update composite")
		return fmt.Errorf("update composite: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrCompositeNotFound
	}

	zlog.Logger.Info().Str("composite_id", c.ID).Str("status", string(c.Status)).Msg("composite updated")
	return nil
}

func (r *compositeRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Composite, error) {
	query := `
		SELECT ` + compositeColumns + `
		FROM composites
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, userID, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", userID).Msg("failed to list composites")
		return nil, fmt.Errorf("list composites: %w", err)
	}
	defer rows.Close()

	composites := make([]*domain.Composite, 0, limit)
	for rows.Next() {
		c, err := scanComposite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan composite: %w", err)
		}
		composites = append(composites, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return composites, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComposite(s scanner) (*domain.Composite, error) {
	var (
		c                                      domain.Composite
		position, bucket, objectKey, publicURL sql.NullString
		errorMsg                               sql.NullString
		width, height                          sql.NullInt32
		completedAt                            sql.NullTime
	)

	err := s.Scan(
		&c.ID,
		&c.UserID,
		&c.ImageURL,
		&c.BackgroundURL,
		&position,
		&c.Status,
		&bucket,
		&objectKey,
		&publicURL,
		&width,
		&height,
		&errorMsg,
		&c.CreatedAt,
		&c.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Position = domain.CarPosition(position.String)
	c.Upload = domain.UploadRecord{
		Bucket:    bucket.String,
		ObjectKey: objectKey.String,
		PublicURL: publicURL.String,
	}
	c.Width = int(width.Int32)
	c.Height = int(height.Int32)
	c.ErrorMessage = errorMsg.String
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}

	return &c, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(i int) sql.NullInt32 {
	if i == 0 {
		return sql.NullInt32{Valid: false}
	}
	return sql.NullInt32{Int32: int32(i), Valid: true}
}
