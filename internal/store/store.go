package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/nelssec/appguard/internal/models"
)

type Store struct {
	db *sqlx.DB
}

type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

func New(cfg Config) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS security_events (
			id UUID PRIMARY KEY,
			device_id TEXT NOT NULL,
			app_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			data JSONB,
			risk_score DOUBLE PRECISION NOT NULL,
			anomaly_score DOUBLE PRECISION NOT NULL,
			anomaly_detected BOOLEAN NOT NULL,
			compliance_violations TEXT[] NOT NULL DEFAULT '{}',
			recommendations TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_device ON security_events (device_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_app ON security_events (app_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_created ON security_events (created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'viewer',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, token)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// CreateEvent persists an analyzed event, assigning its durable identifier
// and storage timestamp.
func (s *Store) CreateEvent(ctx context.Context, event *models.SecurityEvent) error {
	query := `
		INSERT INTO security_events (
			id, device_id, app_id, event_type, data,
			risk_score, anomaly_score, anomaly_detected,
			compliance_violations, recommendations, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	if event.ComplianceViolations == nil {
		event.ComplianceViolations = models.StringArray{}
	}
	if event.Recommendations == nil {
		event.Recommendations = models.StringArray{}
	}

	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.DeviceID, event.AppID, event.EventType, event.Data,
		event.RiskScore, event.AnomalyScore, event.AnomalyDetected,
		event.ComplianceViolations, event.Recommendations, event.CreatedAt,
	)
	return err
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*models.SecurityEvent, error) {
	var event models.SecurityEvent
	query := `SELECT * FROM security_events WHERE id = $1`
	err := s.db.GetContext(ctx, &event, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &event, err
}

type ListEventFilters struct {
	DeviceID  *string
	AppID     *string
	EventType *string
	MinRisk   *float64
	Limit     int
	Offset    int
}

func (s *Store) ListEvents(ctx context.Context, filters ListEventFilters) ([]models.SecurityEvent, int, error) {
	baseQuery := `FROM security_events WHERE 1=1`
	args := make([]interface{}, 0)
	argIdx := 1

	if filters.DeviceID != nil {
		baseQuery += fmt.Sprintf(" AND device_id = $%d", argIdx)
		args = append(args, *filters.DeviceID)
		argIdx++
	}
	if filters.AppID != nil {
		baseQuery += fmt.Sprintf(" AND app_id = $%d", argIdx)
		args = append(args, *filters.AppID)
		argIdx++
	}
	if filters.EventType != nil {
		baseQuery += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, *filters.EventType)
		argIdx++
	}
	if filters.MinRisk != nil {
		baseQuery += fmt.Sprintf(" AND risk_score >= $%d", argIdx)
		args = append(args, *filters.MinRisk)
		argIdx++
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	if filters.Limit <= 0 {
		filters.Limit = 100
	}
	query := "SELECT * " + baseQuery + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filters.Limit, filters.Offset)

	var events []models.SecurityEvent
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("listing events: %w", err)
	}

	return events, total, nil
}

// ListTopRiskEvents returns the highest-scoring events on record,
// most dangerous first.
func (s *Store) ListTopRiskEvents(ctx context.Context, limit int) ([]models.SecurityEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	var events []models.SecurityEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM security_events
		ORDER BY risk_score DESC, created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing top risk events: %w", err)
	}
	return events, nil
}

// GetStats aggregates the stored events for the dashboard.
func (s *Store) GetStats(ctx context.Context) (*models.EventStats, error) {
	stats := &models.EventStats{
		EventsByType: make(map[string]int),
	}

	var row struct {
		Total      int             `db:"total"`
		Anomalies  int             `db:"anomalies"`
		Violations int             `db:"violations"`
		AvgRisk    sql.NullFloat64 `db:"avg_risk"`
	}
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE anomaly_detected) AS anomalies,
			COUNT(*) FILTER (WHERE array_length(compliance_violations, 1) > 0) AS violations,
			AVG(risk_score) AS avg_risk
		FROM security_events
	`
	if err := s.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("aggregating events: %w", err)
	}

	stats.TotalEvents = row.Total
	stats.TotalAnomalies = row.Anomalies
	stats.TotalViolations = row.Violations
	if row.AvgRisk.Valid {
		stats.AverageRiskScore = row.AvgRisk.Float64
	}

	rows, err := s.db.QueryxContext(ctx, `SELECT event_type, COUNT(*) FROM security_events GROUP BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("counting by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scanning type count: %w", err)
		}
		stats.EventsByType[eventType] = count
	}

	return stats, rows.Err()
}
