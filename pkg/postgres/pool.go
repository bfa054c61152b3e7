// Package postgres provides PostgreSQL connection pooling and query helpers
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/messages"
)

// Pool wraps pgxpool.Pool with domain-specific query methods
type Pool struct {
	*pgxpool.Pool
}

// Config holds PostgreSQL connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// Pool settings
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
	HealthCheck time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        5432,
		Database:    "framewatch",
		User:        "framewatch",
		Password:    "framewatch",
		SSLMode:     "disable",
		MaxConns:    25,
		MinConns:    5,
		MaxConnLife: time.Hour,
		MaxConnIdle: 30 * time.Minute,
		HealthCheck: time.Minute,
	}
}

// ConnectionString builds a PostgreSQL connection string
func (c Config) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// NewPool creates a new PostgreSQL connection pool
func NewPool(ctx context.Context, cfg Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLife
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdle
	poolCfg.HealthCheckPeriod = cfg.HealthCheck

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// NewPoolFromURL creates a pool from a connection URL
func NewPoolFromURL(ctx context.Context, url string) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Health verifies database connectivity
func (p *Pool) Health(ctx context.Context) error {
	return p.Ping(ctx)
}

// ClearResult holds the counts of deleted records per table
type ClearResult struct {
	Alerts int64
}

// ClearAll deletes all stored alerts. Camera configuration is kept
func (p *Pool) ClearAll(ctx context.Context) (*ClearResult, error) {
	tag, err := p.Exec(ctx, "DELETE FROM alerts")
	if err != nil {
		return nil, fmt.Errorf("failed to clear alerts: %w", err)
	}
	return &ClearResult{Alerts: tag.RowsAffected()}, nil
}

// CreateAlert inserts a deduplicated alert
func (p *Pool) CreateAlert(ctx context.Context, alert *messages.Alert) error {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal alert metadata: %w", err)
	}

	query := `
		INSERT INTO alerts (
			alert_id, camera_id, alert_type, severity, message,
			metadata, fingerprint, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	_, err = p.Exec(ctx, query,
		alert.AlertID,
		alert.CameraID,
		alert.Type,
		alert.Severity,
		alert.Message,
		metadata,
		alert.Fingerprint,
		alert.Status,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

// HasRecent reports whether an alert with this fingerprint exists for the
// camera at or after since
func (p *Pool) HasRecent(ctx context.Context, cameraID, fingerprint string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE camera_id = $1 AND fingerprint = $2 AND created_at >= $3
		)
	`

	var exists bool
	if err := p.QueryRow(ctx, query, cameraID, fingerprint, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check recent alerts: %w", err)
	}

	return exists, nil
}

// AlertFilter defines filter options for alert queries
type AlertFilter struct {
	CameraID string
	Type     string
	Severity string
	Status   string
	Since    *time.Time
	Limit    int
	Offset   int
}

// ListAlerts retrieves alerts with optional filtering
func (p *Pool) ListAlerts(ctx context.Context, filter AlertFilter) ([]messages.Alert, error) {
	query := `
		SELECT
			alert_id, camera_id, alert_type, severity, message,
			metadata, fingerprint, status, created_at, resolved_at
		FROM alerts
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.CameraID != "" {
		query += fmt.Sprintf(" AND camera_id = $%d", argNum)
		args = append(args, filter.CameraID)
		argNum++
	}

	if filter.Type != "" {
		query += fmt.Sprintf(" AND alert_type = $%d", argNum)
		args = append(args, filter.Type)
		argNum++
	}

	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, filter.Severity)
		argNum++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filter.Status)
		argNum++
	}

	if filter.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argNum)
		args = append(args, *filter.Since)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := p.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []messages.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

// GetAlert retrieves a single alert by ID
func (p *Pool) GetAlert(ctx context.Context, alertID string) (*messages.Alert, error) {
	query := `
		SELECT
			alert_id, camera_id, alert_type, severity, message,
			metadata, fingerprint, status, created_at, resolved_at
		FROM alerts
		WHERE alert_id = $1
	`

	row := p.QueryRow(ctx, query, alertID)
	a, err := scanAlert(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*messages.Alert, error) {
	var a messages.Alert
	var metadata []byte

	err := row.Scan(
		&a.AlertID, &a.CameraID, &a.Type, &a.Severity, &a.Message,
		&metadata, &a.Fingerprint, &a.Status, &a.CreatedAt, &a.ResolvedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert metadata: %w", err)
		}
	}

	return &a, nil
}

// ResolveAlert marks a pending alert resolved. Returns false if the alert
// does not exist or is already resolved
func (p *Pool) ResolveAlert(ctx context.Context, alertID string) (bool, error) {
	query := `
		UPDATE alerts
		SET status = 'resolved', resolved_at = NOW()
		WHERE alert_id = $1 AND status = 'pending'
	`

	tag, err := p.Exec(ctx, query, alertID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve alert: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// AlertStats summarizes stored alerts
type AlertStats struct {
	Total      int            `json:"total"`
	Pending    int            `json:"pending"`
	Resolved   int            `json:"resolved"`
	BySeverity map[string]int `json:"by_severity"`
	ByType     map[string]int `json:"by_type"`
}

// GetAlertStats computes alert counts by status, severity and type
func (p *Pool) GetAlertStats(ctx context.Context) (*AlertStats, error) {
	stats := &AlertStats{
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
	}

	rows, err := p.Query(ctx, `
		SELECT status, severity, alert_type, COUNT(*)
		FROM alerts
		GROUP BY status, severity, alert_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, severity, alertType string
		var count int
		if err := rows.Scan(&status, &severity, &alertType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan alert stats: %w", err)
		}
		stats.Total += count
		switch status {
		case "pending":
			stats.Pending += count
		case "resolved":
			stats.Resolved += count
		}
		stats.BySeverity[severity] += count
		stats.ByType[alertType] += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert stats: %w", err)
	}

	return stats, nil
}

// CameraConfig loads a camera's zone and calibration configuration.
// Implements camera.Provider. Unknown cameras return a zero-value config
func (p *Pool) CameraConfig(ctx context.Context, cameraID string) (*camera.Config, error) {
	query := `
		SELECT
			camera_id, name, location, is_restricted_zone,
			red_zones, yellow_zones, sensitive_areas, pixels_per_meter
		FROM cameras
		WHERE camera_id = $1
	`

	var cfg camera.Config
	var redZones, yellowZones, sensitiveAreas []byte

	err := p.QueryRow(ctx, query, cameraID).Scan(
		&cfg.CameraID, &cfg.Name, &cfg.Location, &cfg.IsRestrictedZone,
		&redZones, &yellowZones, &sensitiveAreas, &cfg.PixelsPerMeter,
	)
	if err == pgx.ErrNoRows {
		return &camera.Config{CameraID: cameraID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camera config: %w", err)
	}

	if len(redZones) > 0 {
		if err := json.Unmarshal(redZones, &cfg.RedZones); err != nil {
			return nil, fmt.Errorf("failed to unmarshal red zones: %w", err)
		}
	}
	if len(yellowZones) > 0 {
		if err := json.Unmarshal(yellowZones, &cfg.YellowZones); err != nil {
			return nil, fmt.Errorf("failed to unmarshal yellow zones: %w", err)
		}
	}
	if len(sensitiveAreas) > 0 {
		if err := json.Unmarshal(sensitiveAreas, &cfg.SensitiveAreas); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sensitive areas: %w", err)
		}
	}

	return &cfg, nil
}

// UpsertCamera inserts or updates a camera configuration
func (p *Pool) UpsertCamera(ctx context.Context, cfg *camera.Config) error {
	redZones, err := json.Marshal(cfg.RedZones)
	if err != nil {
		return fmt.Errorf("failed to marshal red zones: %w", err)
	}
	yellowZones, err := json.Marshal(cfg.YellowZones)
	if err != nil {
		return fmt.Errorf("failed to marshal yellow zones: %w", err)
	}
	sensitiveAreas, err := json.Marshal(cfg.SensitiveAreas)
	if err != nil {
		return fmt.Errorf("failed to marshal sensitive areas: %w", err)
	}

	query := `
		INSERT INTO cameras (
			camera_id, name, location, is_restricted_zone,
			red_zones, yellow_zones, sensitive_areas, pixels_per_meter,
			updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			NOW()
		)
		ON CONFLICT (camera_id) DO UPDATE SET
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			is_restricted_zone = EXCLUDED.is_restricted_zone,
			red_zones = EXCLUDED.red_zones,
			yellow_zones = EXCLUDED.yellow_zones,
			sensitive_areas = EXCLUDED.sensitive_areas,
			pixels_per_meter = EXCLUDED.pixels_per_meter,
			updated_at = NOW()
	`

	_, err = p.Exec(ctx, query,
		cfg.CameraID,
		cfg.Name,
		cfg.Location,
		cfg.IsRestrictedZone,
		redZones,
		yellowZones,
		sensitiveAreas,
		cfg.PixelsPerMeter,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert camera: %w", err)
	}

	return nil
}

// ListCameras retrieves all configured cameras
func (p *Pool) ListCameras(ctx context.Context) ([]camera.Config, error) {
	query := `
		SELECT
			camera_id, name, location, is_restricted_zone,
			red_zones, yellow_zones, sensitive_areas, pixels_per_meter
		FROM cameras
		ORDER BY camera_id
	`

	rows, err := p.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []camera.Config
	for rows.Next() {
		var cfg camera.Config
		var redZones, yellowZones, sensitiveAreas []byte

		err := rows.Scan(
			&cfg.CameraID, &cfg.Name, &cfg.Location, &cfg.IsRestrictedZone,
			&redZones, &yellowZones, &sensitiveAreas, &cfg.PixelsPerMeter,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}

		if len(redZones) > 0 {
			if err := json.Unmarshal(redZones, &cfg.RedZones); err != nil {
				return nil, fmt.Errorf("failed to unmarshal red zones: %w", err)
			}
		}
		if len(yellowZones) > 0 {
			if err := json.Unmarshal(yellowZones, &cfg.YellowZones); err != nil {
				return nil, fmt.Errorf("failed to unmarshal yellow zones: %w", err)
			}
		}
		if len(sensitiveAreas) > 0 {
			if err := json.Unmarshal(sensitiveAreas, &cfg.SensitiveAreas); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sensitive areas: %w", err)
			}
		}

		cameras = append(cameras, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cameras: %w", err)
	}

	return cameras, nil
}
