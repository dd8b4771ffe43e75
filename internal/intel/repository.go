package intel

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository persists intelligence data through database/sql
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new repository over db
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertEntity inserts the entity or refreshes its last_seen, returning its id
func (r *PostgresRepository) UpsertEntity(ctx context.Context, t EntityType, value string, seenAt time.Time) (uuid.UUID, error) {
	query := `
		INSERT INTO entities (id, type, value, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (type, value) DO UPDATE
		SET last_seen = GREATEST(entities.last_seen, EXCLUDED.last_seen)
		RETURNING id
	`

	var id uuid.UUID
	if err := r.db.QueryRowContext(ctx, query, uuid.New(), string(t), value, seenAt).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("upsert entity %s: %w", t, err)
	}
	return id, nil
}

// FindEntity returns ErrNotFound when (t, value) was never seen
func (r *PostgresRepository) FindEntity(ctx context.Context, t EntityType, value string) (*Entity, error) {
	query := `
		SELECT id, type, value, first_seen, last_seen, last_reported_at, report_count, confirmed_scam
		FROM entities
		WHERE type = $1 AND value = $2
	`

	e, err := scanEntity(r.db.QueryRowContext(ctx, query, string(t), value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entity: %w", err)
	}
	return e, nil
}

// GetEntitiesByIDs loads the entities that exist among ids
func (r *PostgresRepository) GetEntitiesByIDs(ctx context.Context, ids []uuid.UUID) ([]Entity, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, type, value, first_seen, last_seen, last_reported_at, report_count, confirmed_scam
		FROM entities
		WHERE id IN (` + placeholders(1, len(ids)) + `)`

	rows, err := r.db.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("get entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

// IncrementReportCounts bumps report_count once per distinct id
func (r *PostgresRepository) IncrementReportCounts(ctx context.Context, ids []uuid.UUID, reportedAt time.Time) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE entities
		SET report_count = report_count + 1,
			last_seen = GREATEST(last_seen, $1),
			last_reported_at = GREATEST(COALESCE(last_reported_at, $1), $1)
		WHERE id IN (` + placeholders(2, len(ids)) + `)`

	args := append([]interface{}{reportedAt}, idArgs(ids)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("increment report counts: %w", err)
	}
	return nil
}

// GetCampaigns loads every campaign with its indicators
func (r *PostgresRepository) GetCampaigns(ctx context.Context) ([]Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, family_name, status, first_seen, regions, report_count, templates
		FROM campaigns
		ORDER BY first_seen
	`)
	if err != nil {
		return nil, fmt.Errorf("get campaigns: %w", err)
	}

	var campaigns []Campaign
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[c.ID] = len(campaigns)
		campaigns = append(campaigns, *c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	irows, err := r.db.QueryContext(ctx, `SELECT id, type, value, campaign_id FROM indicators`)
	if err != nil {
		return nil, fmt.Errorf("get indicators: %w", err)
	}
	defer irows.Close()

	for irows.Next() {
		var ind Indicator
		var t string
		if err := irows.Scan(&ind.ID, &t, &ind.Value, &ind.CampaignID); err != nil {
			return nil, fmt.Errorf("scan indicator: %w", err)
		}
		ind.Type = EntityType(t)
		if i, ok := index[ind.CampaignID]; ok {
			campaigns[i].Indicators = append(campaigns[i].Indicators, ind)
		}
	}
	return campaigns, irows.Err()
}

// FindIndicatorByValue returns ErrNotFound when no campaign lists value
func (r *PostgresRepository) FindIndicatorByValue(ctx context.Context, value string) (*IndicatorMatch, error) {
	query := `
		SELECT i.id, i.type, i.value, i.campaign_id,
		       c.id, c.family_name, c.status, c.first_seen, c.regions, c.report_count, c.templates
		FROM indicators i
		JOIN campaigns c ON c.id = i.campaign_id
		WHERE i.value = $1
		LIMIT 1
	`

	var m IndicatorMatch
	var indType, status string
	var regionsJSON, templatesJSON []byte
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&m.Indicator.ID,
		&indType,
		&m.Indicator.Value,
		&m.Indicator.CampaignID,
		&m.Campaign.ID,
		&m.Campaign.FamilyName,
		&status,
		&m.Campaign.FirstSeen,
		&regionsJSON,
		&m.Campaign.ReportCount,
		&templatesJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find indicator: %w", err)
	}

	m.Indicator.Type = EntityType(indType)
	m.Campaign.Status = CampaignStatus(status)
	decodeStrings(regionsJSON, &m.Campaign.Regions)
	decodeStrings(templatesJSON, &m.Campaign.Templates)
	return &m, nil
}

// CreateReport stores the report and its entity links in one transaction
func (r *PostgresRepository) CreateReport(ctx context.Context, report *Report) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var province sql.NullString
	if report.Province != nil {
		province = sql.NullString{String: *report.Province, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (id, scam_type, message, province, verified, upvotes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, report.ID, report.ScamType, report.Message, province, report.Verified, report.Upvotes, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	for _, id := range uniqueIDs(report.EntityIDs) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO report_entities (report_id, entity_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, report.ID, id); err != nil {
			return fmt.Errorf("link report entity: %w", err)
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner) (*Entity, error) {
	var e Entity
	var t string
	var reported sql.NullTime
	if err := row.Scan(&e.ID, &t, &e.Value, &e.FirstSeen, &e.LastSeen, &reported, &e.ReportCount, &e.ConfirmedScam); err != nil {
		return nil, err
	}
	e.Type = EntityType(t)
	if reported.Valid {
		at := reported.Time
		e.LastReportedAt = &at
	}
	return &e, nil
}

func scanCampaign(row rowScanner) (*Campaign, error) {
	var c Campaign
	var status string
	var regionsJSON, templatesJSON []byte
	if err := row.Scan(&c.ID, &c.FamilyName, &status, &c.FirstSeen, &regionsJSON, &c.ReportCount, &templatesJSON); err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}
	c.Status = CampaignStatus(status)
	decodeStrings(regionsJSON, &c.Regions)
	decodeStrings(templatesJSON, &c.Templates)
	return &c, nil
}

func decodeStrings(raw []byte, dst *[]string) {
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		*dst = nil
	}
}

func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(start+i)
	}
	return strings.Join(parts, ", ")
}

func idArgs(ids []uuid.UUID) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
