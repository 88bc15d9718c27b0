package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/reengage-labs/campaign-cli/internal/model"
	"github.com/reengage-labs/campaign-cli/internal/recovery"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id          TEXT PRIMARY KEY,
	config      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	pattern_id  TEXT,
	workflow_id TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS investments (
	id          TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL,
	amount      REAL NOT NULL,
	category    TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS conversions (
	id              TEXT PRIMARY KEY,
	campaign_id     TEXT NOT NULL,
	student_id      TEXT NOT NULL,
	revenue         REAL NOT NULL,
	conversion_type TEXT NOT NULL,
	created_at      DATETIME NOT NULL
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
	recovery_success  INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS students (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT,
	phone         TEXT,
	registered_at DATETIME,
	last_payment  DATETIME,
	last_access   DATETIME,
	plan_type     TEXT,
	monthly_fee   REAL,
	status        TEXT
);

CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
CREATE INDEX IF NOT EXISTS idx_investments_campaign ON investments(campaign_id);
CREATE INDEX IF NOT EXISTS idx_conversions_campaign ON conversions(campaign_id);
CREATE INDEX IF NOT EXISTS idx_error_records_campaign ON error_records(campaign_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCampaign(ctx context.Context, campaign model.Campaign) error {
	configJSON, err := json.Marshal(campaign.Config)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal campaign config")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, config, status, pattern_id, workflow_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		campaign.ID, string(configJSON), string(campaign.Status),
		campaign.PatternID, campaign.WorkflowID, campaign.CreatedAt, campaign.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert campaign")
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, config, status, pattern_id, workflow_id, created_at, updated_at
		 FROM campaigns WHERE id = ?`,
		campaignID,
	)
	return scanCampaign(row)
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]model.Campaign, error) {
	query := `SELECT id, config, status, pattern_id, workflow_id, created_at, updated_at
	          FROM campaigns WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, eris.Wrap(rows.Err(), "sqlite: list campaigns iterate")
}

func (s *SQLiteStore) UpdateCampaignStatus(ctx context.Context, campaignID string, status model.CampaignStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), campaignID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update campaign status %s", campaignID)
	}
	return checkRowsAffected(res, "campaign", campaignID)
}

func (s *SQLiteStore) AppendInvestment(ctx context.Context, inv model.Investment) error {
	id := inv.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO investments (id, campaign_id, amount, category, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, inv.CampaignID, inv.Amount, inv.Category, inv.Timestamp.UTC(),
	)
	return eris.Wrap(err, "sqlite: append investment")
}

func (s *SQLiteStore) AppendConversion(ctx context.Context, conv model.Conversion) error {
	id := conv.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (id, campaign_id, student_id, revenue, conversion_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, conv.CampaignID, conv.StudentID, conv.Revenue, conv.ConversionType, conv.Timestamp.UTC(),
	)
	return eris.Wrap(err, "sqlite: append conversion")
}

func (s *SQLiteStore) ListInvestments(ctx context.Context, campaignID string) ([]model.Investment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, amount, category, created_at FROM investments
		 WHERE campaign_id = ? ORDER BY created_at`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list investments")
	}
	defer rows.Close()

	var out []model.Investment
	for rows.Next() {
		var inv model.Investment
		if err := rows.Scan(&inv.ID, &inv.CampaignID, &inv.Amount, &inv.Category, &inv.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan investment")
		}
		out = append(out, inv)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list investments iterate")
}

func (s *SQLiteStore) ListConversions(ctx context.Context, campaignID string) ([]model.Conversion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, student_id, revenue, conversion_type, created_at FROM conversions
		 WHERE campaign_id = ? ORDER BY created_at`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list conversions")
	}
	defer rows.Close()

	var out []model.Conversion
	for rows.Next() {
		var conv model.Conversion
		if err := rows.Scan(&conv.ID, &conv.CampaignID, &conv.StudentID, &conv.Revenue,
			&conv.ConversionType, &conv.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan conversion")
		}
		out = append(out, conv)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list conversions iterate")
}

func (s *SQLiteStore) RecordError(ctx context.Context, rec recovery.ErrorRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO error_records (id, error_type, error_message, severity, category,
		   campaign_id, component, recovery_strategy, recovery_success, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ErrorID, rec.ErrorType, rec.ErrorMessage, string(rec.Severity), string(rec.Category),
		rec.Context.CampaignID, rec.Context.Component, string(rec.RecoveryStrategy),
		rec.RecoverySuccess, rec.Context.Timestamp.UTC(),
	)
	return eris.Wrap(err, "sqlite: record error")
}

func (s *SQLiteStore) UpsertStudents(ctx context.Context, students []model.Student) (int64, error) {
	if len(students) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert students begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO students (id, name, email, phone, registered_at, last_payment, last_access,
		   plan_type, monthly_fee, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name, email = excluded.email, phone = excluded.phone,
		   registered_at = excluded.registered_at, last_payment = excluded.last_payment,
		   last_access = excluded.last_access, plan_type = excluded.plan_type,
		   monthly_fee = excluded.monthly_fee, status = excluded.status`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert students prepare")
	}
	defer stmt.Close()

	for _, s := range students {
		if _, err := stmt.ExecContext(ctx, s.ID, s.Name, s.Email, s.Phone,
			s.RegisteredAt, s.LastPayment, s.LastAccess, s.PlanType, s.MonthlyFee, s.Status); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert student %s", s.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert students commit")
	}
	return int64(len(students)), nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCampaign(row scannable) (*model.Campaign, error) {
	var c model.Campaign
	var configJSON string
	var patternID, workflowID sql.NullString

	err := row.Scan(&c.ID, &configJSON, &c.Status, &patternID, &workflowID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("campaign not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan campaign")
	}

	if err := json.Unmarshal([]byte(configJSON), &c.Config); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal campaign config")
	}
	c.PatternID = patternID.String
	c.WorkflowID = workflowID.String
	return &c, nil
}
