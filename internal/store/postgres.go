package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/reengage-labs/campaign-cli/internal/db"
	"github.com/reengage-labs/campaign-cli/internal/model"
	"github.com/reengage-labs/campaign-cli/internal/recovery"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_campaign":        `INSERT INTO campaigns (id, config, status, pattern_id, workflow_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"get_campaign":           `SELECT id, config, status, pattern_id, workflow_id, created_at, updated_at FROM campaigns WHERE id = $1`,
	"update_campaign_status": `UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3`,
	"insert_investment":      `INSERT INTO investments (id, campaign_id, amount, category, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"insert_conversion":      `INSERT INTO conversions (id, campaign_id, student_id, revenue, conversion_type, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"list_investments":       `SELECT id, campaign_id, amount, category, created_at FROM investments WHERE campaign_id = $1 ORDER BY created_at`,
	"list_conversions":       `SELECT id, campaign_id, student_id, revenue, conversion_type, created_at FROM conversions WHERE campaign_id = $1 ORDER BY created_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id          TEXT PRIMARY KEY,
	config      JSONB NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	pattern_id  TEXT,
	workflow_id TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS investments (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	campaign_id TEXT NOT NULL,
	amount      DOUBLE PRECISION NOT NULL,
	category    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS conversions (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	campaign_id     TEXT NOT NULL,
	student_id      TEXT NOT NULL,
	revenue         DOUBLE PRECISION NOT NULL,
	conversion_type TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS error_records (
	id                TEXT PRIMARY KEY,
	error_type        TEXT NOT NULL,
	error_message     TEXT NOT NULL,
	severity          TEXT NOT NULL,
	category          TEXT NOT NULL,
	campaign_id       TEXT,
	component         TEXT,
	recovery_strategy TEXT NOT NULL,
	recovery_success  BOOLEAN NOT NULL DEFAULT false,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS students (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT,
	phone         TEXT,
	registered_at TIMESTAMPTZ,
	last_payment  TIMESTAMPTZ,
	last_access   TIMESTAMPTZ,
	plan_type     TEXT,
	monthly_fee   DOUBLE PRECISION,
	status        TEXT
);

CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
CREATE INDEX IF NOT EXISTS idx_investments_campaign ON investments(campaign_id);
CREATE INDEX IF NOT EXISTS idx_conversions_campaign ON conversions(campaign_id);
CREATE INDEX IF NOT EXISTS idx_error_records_campaign ON error_records(campaign_id);
`

var studentColumns = []string{
	"id", "name", "email", "phone", "registered_at", "last_payment",
	"last_access", "plan_type", "monthly_fee", "status",
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, campaign model.Campaign) error {
	configJSON, err := json.Marshal(campaign.Config)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal campaign config")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO campaigns (id, config, status, pattern_id, workflow_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		campaign.ID, configJSON, string(campaign.Status),
		campaign.PatternID, campaign.WorkflowID, campaign.CreatedAt, campaign.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert campaign")
}

func (s *PostgresStore) GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, config, status, pattern_id, workflow_id, created_at, updated_at
		 FROM campaigns WHERE id = $1`,
		campaignID,
	)

	var c model.Campaign
	var configJSON []byte
	err := row.Scan(&c.ID, &configJSON, &c.Status, &c.PatternID, &c.WorkflowID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("campaign not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan campaign")
	}
	if err := json.Unmarshal(configJSON, &c.Config); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal campaign config")
	}
	return &c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]model.Campaign, error) {
	query := `SELECT id, config, status, pattern_id, workflow_id, created_at, updated_at
	          FROM campaigns`
	var args []any

	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var c model.Campaign
		var configJSON []byte
		if err := rows.Scan(&c.ID, &configJSON, &c.Status, &c.PatternID, &c.WorkflowID,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		if err := json.Unmarshal(configJSON, &c.Config); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal campaign config")
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, eris.Wrap(rows.Err(), "postgres: list campaigns iterate")
}

func (s *PostgresStore) UpdateCampaignStatus(ctx context.Context, campaignID string, status model.CampaignStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), campaignID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update campaign status %s", campaignID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("campaign not found: %s", campaignID)
	}
	return nil
}

func (s *PostgresStore) AppendInvestment(ctx context.Context, inv model.Investment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO investments (id, campaign_id, amount, category, created_at)
		 VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5)`,
		inv.ID, inv.CampaignID, inv.Amount, inv.Category, inv.Timestamp.UTC(),
	)
	return eris.Wrap(err, "postgres: append investment")
}

func (s *PostgresStore) AppendConversion(ctx context.Context, conv model.Conversion) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversions (id, campaign_id, student_id, revenue, conversion_type, created_at)
		 VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6)`,
		conv.ID, conv.CampaignID, conv.StudentID, conv.Revenue, conv.ConversionType, conv.Timestamp.UTC(),
	)
	return eris.Wrap(err, "postgres: append conversion")
}

func (s *PostgresStore) ListInvestments(ctx context.Context, campaignID string) ([]model.Investment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, campaign_id, amount, category, created_at FROM investments
		 WHERE campaign_id = $1 ORDER BY created_at`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list investments")
	}
	defer rows.Close()

	var out []model.Investment
	for rows.Next() {
		var inv model.Investment
		if err := rows.Scan(&inv.ID, &inv.CampaignID, &inv.Amount, &inv.Category, &inv.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan investment")
		}
		out = append(out, inv)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list investments iterate")
}

func (s *PostgresStore) ListConversions(ctx context.Context, campaignID string) ([]model.Conversion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, campaign_id, student_id, revenue, conversion_type, created_at FROM conversions
		 WHERE campaign_id = $1 ORDER BY created_at`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list conversions")
	}
	defer rows.Close()

	var out []model.Conversion
	for rows.Next() {
		var conv model.Conversion
		if err := rows.Scan(&conv.ID, &conv.CampaignID, &conv.StudentID, &conv.Revenue,
			&conv.ConversionType, &conv.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan conversion")
		}
		out = append(out, conv)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list conversions iterate")
}

func (s *PostgresStore) RecordError(ctx context.Context, rec recovery.ErrorRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO error_records (id, error_type, error_message, severity, category,
		   campaign_id, component, recovery_strategy, recovery_success, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ErrorID, rec.ErrorType, rec.ErrorMessage, string(rec.Severity), string(rec.Category),
		rec.Context.CampaignID, rec.Context.Component, string(rec.RecoveryStrategy),
		rec.RecoverySuccess, rec.Context.Timestamp.UTC(),
	)
	return eris.Wrap(err, "postgres: record error")
}

// UpsertStudents bulk-upserts the imported roster via a temp table and
// INSERT ... ON CONFLICT.
func (s *PostgresStore) UpsertStudents(ctx context.Context, students []model.Student) (int64, error) {
	rows := make([][]any, len(students))
	for i, st := range students {
		rows[i] = []any{st.ID, st.Name, st.Email, st.Phone, st.RegisteredAt, st.LastPayment,
			st.LastAccess, st.PlanType, st.MonthlyFee, st.Status}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "students",
		Columns:      studentColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert students")
}
