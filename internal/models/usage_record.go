package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is the audit row written for each authorized request. It is
// the raw material the analytics layer aggregates; nothing in this core
// reads it back.
type UsageRecord struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RequestID      uuid.UUID `db:"request_id" json:"request_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Endpoint       string    `db:"endpoint" json:"endpoint"`
	Category       string    `db:"category" json:"category"`
	RankingOrder   string    `db:"ranking_order" json:"ranking_order"`
	AnalysisTarget string    `db:"analysis_target" json:"analysis_target"`
	StatusCode     int       `db:"status_code" json:"status_code"`
	ResponseTimeMS int       `db:"response_time_ms" json:"response_time_ms"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
