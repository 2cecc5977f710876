package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"llm_router/internal/models"
)

// UsageRepository persists per-request usage records.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository.
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

const insertUsageQuery = `
	INSERT INTO usage_records (
		id, request_id, user_id, endpoint, category, ranking_order,
		analysis_target, status_code, response_time_ms, created_at
	) VALUES (
		:id, :request_id, :user_id, :endpoint, :category, :ranking_order,
		:analysis_target, :status_code, :response_time_ms, :created_at
	)
`

func prepareRecord(record *models.UsageRecord) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
}

// Create inserts a single usage record.
func (r *UsageRepository) Create(ctx context.Context, record *models.UsageRecord) error {
	prepareRecord(record)

	if _, err := r.db.conn.NamedExecContext(ctx, insertUsageQuery, record); err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}

	return nil
}

// CreateBatch inserts records in one transaction. All or nothing: a single
// bad record rolls the batch back so the worker can fall back to
// per-record inserts.
func (r *UsageRepository) CreateBatch(ctx context.Context, records []*models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.insertAll(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage batch: %w", err)
	}

	return nil
}

func (r *UsageRepository) insertAll(ctx context.Context, tx *sqlx.Tx, records []*models.UsageRecord) error {
	for _, record := range records {
		prepareRecord(record)
		if _, err := tx.NamedExecContext(ctx, insertUsageQuery, record); err != nil {
			return fmt.Errorf("failed to insert usage record %s: %w", record.ID, err)
		}
	}
	return nil
}
