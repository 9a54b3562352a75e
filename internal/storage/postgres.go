package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"zblog/internal/models"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository applies pending migrations and opens a connection pool
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	if err := runMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql handle; pgx/stdlib provides it
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("No new migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("✅ Database migrations applied")
	return nil
}

// SaveContent upserts the content record of a post
func (r *PostgresRepository) SaveContent(ctx context.Context, record *models.StoredContent) error {
	query := `
		INSERT INTO post_contents (
			post_id, content_hash, title, content, author, category, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (post_id) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			author = EXCLUDED.author,
			category = EXCLUDED.category,
			created_at = EXCLUDED.created_at,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		record.PostID,
		strconv.FormatUint(record.ContentHash, 10),
		record.Title,
		record.Content,
		record.Author,
		int16(record.Category),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}

	return nil
}

const contentColumns = `post_id, content_hash::TEXT, title, content, author, category, created_at`

// GetContent retrieves the content record of a post
func (r *PostgresRepository) GetContent(ctx context.Context, postID string) (*models.StoredContent, error) {
	query := `SELECT ` + contentColumns + ` FROM post_contents WHERE post_id = $1`
	return r.scanContent(r.pool.QueryRow(ctx, query, postID))
}

// GetContentByHash retrieves the most recently written record with the given hash
func (r *PostgresRepository) GetContentByHash(ctx context.Context, contentHash uint64) (*models.StoredContent, error) {
	query := `
		SELECT ` + contentColumns + `
		FROM post_contents
		WHERE content_hash = $1::NUMERIC
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return r.scanContent(r.pool.QueryRow(ctx, query, strconv.FormatUint(contentHash, 10)))
}

// ListContents lists every content record ordered by post id
func (r *PostgresRepository) ListContents(ctx context.Context) ([]*models.StoredContent, error) {
	query := `SELECT ` + contentColumns + ` FROM post_contents ORDER BY post_id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list contents: %w", err)
	}
	defer rows.Close()

	var records []*models.StoredContent
	for rows.Next() {
		record, err := r.scanContent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contents: %w", err)
	}

	return records, nil
}

// ClearContents deletes every content record
func (r *PostgresRepository) ClearContents(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM post_contents`); err != nil {
		return fmt.Errorf("failed to clear contents: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanContent(row pgx.Row) (*models.StoredContent, error) {
	var (
		record   models.StoredContent
		hash     string
		category int16
	)

	err := row.Scan(
		&record.PostID,
		&hash,
		&record.Title,
		&record.Content,
		&record.Author,
		&category,
		&record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan content: %w", err)
	}

	record.ContentHash, err = strconv.ParseUint(hash, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse content hash %q: %w", hash, err)
	}
	record.Category = uint8(category)

	return &record, nil
}

// SaveActivity saves a post activity
func (r *PostgresRepository) SaveActivity(ctx context.Context, activity *models.PostActivity) error {
	query := `
		INSERT INTO post_activities (
			activity_id, post_id, activity_type, actor, target, tx_hash, block_number, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (activity_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		activity.ActivityID,
		activity.PostID,
		string(activity.ActivityType),
		activity.Actor,
		activity.Target,
		activity.TxHash,
		int64(activity.BlockNumber),
		activity.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}

	return nil
}

// ListActivities lists the activities of a post, newest first, with pagination
func (r *PostgresRepository) ListActivities(ctx context.Context, postID string, limit, offset int) ([]*models.PostActivity, error) {
	query := `
		SELECT activity_id, post_id, activity_type, actor, target, tx_hash, block_number, timestamp
		FROM post_activities
		WHERE post_id = $1
		ORDER BY timestamp DESC, block_number DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, postID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.PostActivity
	for rows.Next() {
		var (
			activity     models.PostActivity
			activityType string
			block        int64
		)
		err := rows.Scan(
			&activity.ActivityID,
			&activity.PostID,
			&activityType,
			&activity.Actor,
			&activity.Target,
			&activity.TxHash,
			&block,
			&activity.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activity.ActivityType = models.ActivityType(activityType)
		activity.BlockNumber = uint64(block)
		activities = append(activities, &activity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}

	return activities, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
