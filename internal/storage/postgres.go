package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/helphive/backend/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	contact_info     TEXT NOT NULL UNIQUE,
	password_hash    TEXT NOT NULL,
	role             TEXT NOT NULL,
	is_approved      BOOLEAN NOT NULL DEFAULT FALSE,
	location         TEXT NOT NULL DEFAULT '',
	full_address     TEXT NOT NULL DEFAULT '',
	abstract_address TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_role ON users (role);

CREATE TABLE IF NOT EXISTS help_requests (
	id                 TEXT PRIMARY KEY,
	requester_id       TEXT NOT NULL,
	requester_name     TEXT NOT NULL,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL,
	category           TEXT NOT NULL,
	is_urgent          BOOLEAN NOT NULL DEFAULT FALSE,
	complexity         TEXT NOT NULL,
	estimated_duration TEXT NOT NULL DEFAULT '',
	preferred_time     TEXT NOT NULL DEFAULT '',
	full_address       TEXT NOT NULL DEFAULT '',
	abstract_address   TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	helper_id          TEXT NULL,
	helper_name        TEXT NOT NULL DEFAULT '',
	offers             JSONB NOT NULL DEFAULT '[]'::jsonb,
	timeline           JSONB NOT NULL DEFAULT '[]'::jsonb,
	version            BIGINT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_help_requests_status ON help_requests (status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_help_requests_requester ON help_requests (requester_id);
CREATE INDEX IF NOT EXISTS idx_help_requests_helper ON help_requests (helper_id);

CREATE TABLE IF NOT EXISTS admin_audit (
	id         TEXT PRIMARY KEY,
	admin_id   TEXT NOT NULL,
	action     TEXT NOT NULL,
	request_id TEXT NOT NULL,
	details    JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_admin_audit_request ON admin_audit (request_id, created_at);

CREATE OR REPLACE FUNCTION admin_audit_block_mutation() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'admin_audit is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_admin_audit_block_mutation ON admin_audit;
CREATE TRIGGER trg_admin_audit_block_mutation
	BEFORE UPDATE OR DELETE ON admin_audit
	FOR EACH ROW EXECUTE FUNCTION admin_audit_block_mutation();
`

const pgUniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects through the pgx database/sql driver and applies the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

const userColumns = `id, name, contact_info, password_hash, role, is_approved, location, full_address, abstract_address, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.ContactInfo, &u.PasswordHash, &role, &u.IsApproved,
		&u.Location, &u.FullAddress, &u.AbstractAddress, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, user.ID, user.Name, user.ContactInfo, user.PasswordHash, string(user.Role), user.IsApproved,
		user.Location, user.FullAddress, user.AbstractAddress, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) getUserWhere(ctx context.Context, where string, arg string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUserWhere(ctx, "id", id)
}

func (s *PostgresStore) GetUserByContactInfo(ctx context.Context, contactInfo string) (*models.User, error) {
	return s.getUserWhere(ctx, "contact_info", contactInfo)
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, contact_info = $3, password_hash = $4, role = $5, is_approved = $6,
			location = $7, full_address = $8, abstract_address = $9, updated_at = $10
		WHERE id = $1
	`, user.ID, user.Name, user.ContactInfo, user.PasswordHash, string(user.Role), user.IsApproved,
		user.Location, user.FullAddress, user.AbstractAddress, user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, role models.Role) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []interface{}{}
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, string(role))
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const requestColumns = `id, requester_id, requester_name, title, description, category, is_urgent, complexity,
	estimated_duration, preferred_time, full_address, abstract_address, status, helper_id, helper_name,
	offers, timeline, version, created_at, updated_at`

func scanRequest(row rowScanner) (*models.HelpRequest, error) {
	var r models.HelpRequest
	var complexity, status string
	var helperID sql.NullString
	var offers, timeline []byte
	if err := row.Scan(&r.ID, &r.RequesterID, &r.RequesterName, &r.Title, &r.Description, &r.Category,
		&r.IsUrgent, &complexity, &r.EstimatedDuration, &r.PreferredTime, &r.FullAddress, &r.AbstractAddress,
		&status, &helperID, &r.HelperName, &offers, &timeline, &r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Complexity = models.Complexity(complexity)
	r.Status = models.Status(status)
	r.HelperID = helperID.String
	r.Offers = []models.Offer{}
	r.Timeline = []models.TimelineEvent{}
	if err := json.Unmarshal(offers, &r.Offers); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}
	if err := json.Unmarshal(timeline, &r.Timeline); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	return &r, nil
}

func encodeLists(r *models.HelpRequest) (string, string, error) {
	offers := r.Offers
	if offers == nil {
		offers = []models.Offer{}
	}
	timeline := r.Timeline
	if timeline == nil {
		timeline = []models.TimelineEvent{}
	}
	o, err := json.Marshal(offers)
	if err != nil {
		return "", "", err
	}
	t, err := json.Marshal(timeline)
	if err != nil {
		return "", "", err
	}
	return string(o), string(t), nil
}

func (s *PostgresStore) CreateRequest(ctx context.Context, req *models.HelpRequest) error {
	offers, timeline, err := encodeLists(req)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO help_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16::jsonb, $17::jsonb, 1, $18, $19)
	`, req.ID, req.RequesterID, req.RequesterName, req.Title, req.Description, req.Category, req.IsUrgent,
		string(req.Complexity), req.EstimatedDuration, req.PreferredTime, req.FullAddress, req.AbstractAddress,
		string(req.Status), nullIfEmpty(req.HelperID), req.HelperName, offers, timeline, req.CreatedAt, req.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	req.Version = 1
	return nil
}

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (*models.HelpRequest, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM help_requests WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) UpdateRequest(ctx context.Context, req *models.HelpRequest) error {
	offers, timeline, err := encodeLists(req)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE help_requests
		SET title = $3, description = $4, category = $5, is_urgent = $6, complexity = $7,
			estimated_duration = $8, preferred_time = $9, full_address = $10, abstract_address = $11,
			status = $12, helper_id = $13, helper_name = $14, offers = $15::jsonb, timeline = $16::jsonb,
			requester_name = $17, updated_at = $18, version = version + 1
		WHERE id = $1 AND version = $2
	`, req.ID, req.Version, req.Title, req.Description, req.Category, req.IsUrgent, string(req.Complexity),
		req.EstimatedDuration, req.PreferredTime, req.FullAddress, req.AbstractAddress,
		string(req.Status), nullIfEmpty(req.HelperID), req.HelperName, offers, timeline,
		req.RequesterName, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM help_requests WHERE id = $1)`, req.ID).Scan(&exists); err != nil {
			return fmt.Errorf("lookup request: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStale
	}
	req.Version++
	return nil
}

func (s *PostgresStore) DeleteRequest(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM help_requests WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete request: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func postgresRequestWhere(f models.RequestFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.RequesterID != "" {
		add("requester_id = $%d", f.RequesterID)
	}
	if f.HelperID != "" {
		add("helper_id = $%d", f.HelperID)
	} else if f.Unassigned {
		clauses = append(clauses, "helper_id IS NULL")
	}
	if f.Category != "" {
		add("lower(category) = lower($%d)", f.Category)
	}
	if !f.CreatedAfter.IsZero() {
		add("created_at >= $%d", f.CreatedAfter)
	}
	if !f.CreatedBefore.IsZero() {
		add("created_at <= $%d", f.CreatedBefore)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *PostgresStore) ListRequests(ctx context.Context, f models.RequestFilter, page models.Page) ([]*models.HelpRequest, int, error) {
	page = page.Normalize()
	where, args := postgresRequestWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM help_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM help_requests%s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d`,
		requestColumns, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := make([]*models.HelpRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PostgresStore) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]string{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO admin_audit (id, admin_id, action, request_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
	`, entry.ID, entry.AdminID, entry.Action, entry.RequestID, string(raw), entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAudit(ctx context.Context, requestID string) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_id, action, request_id, details, created_at
		FROM admin_audit
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	out := make([]models.AuditEntry, 0)
	for rows.Next() {
		var e models.AuditEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.RequestID, &details, &e.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
