package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
	"github.com/aryan0dhankhar/bloodbank/pkg/database"
)

// dialect captures the few differences between the SQL backends.
type dialect struct {
	name      string
	timestamp string
	forUpdate string
	dollar    bool
}

var (
	postgresDialect = dialect{name: database.DriverPostgres, timestamp: "TIMESTAMPTZ", forUpdate: " FOR UPDATE", dollar: true}
	sqliteDialect   = dialect{name: database.DriverSQLite, timestamp: "DATETIME"}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case database.DriverPostgres:
		return postgresDialect, nil
	case database.DriverSQLite:
		return sqliteDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// bind rewrites ? placeholders to $n for postgres.
func (d dialect) bind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (d dialect) isDuplicate(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS donors (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	age                INTEGER NOT NULL CHECK (age BETWEEN 18 AND 65),
	blood_group        TEXT NOT NULL,
	city               TEXT NOT NULL,
	contact            TEXT NOT NULL,
	email              TEXT NOT NULL DEFAULT '',
	registration_date  %[1]s NOT NULL,
	last_donation_date %[1]s
);
CREATE INDEX IF NOT EXISTS idx_donors_blood_group ON donors (blood_group);
CREATE TABLE IF NOT EXISTS blood_requests (
	id             TEXT PRIMARY KEY,
	requester_name TEXT NOT NULL,
	requester_type TEXT NOT NULL,
	blood_group    TEXT NOT NULL,
	urgency_level  TEXT NOT NULL,
	city           TEXT NOT NULL,
	contact        TEXT NOT NULL,
	email          TEXT NOT NULL DEFAULT '',
	units_needed   INTEGER NOT NULL CHECK (units_needed >= 1),
	request_date   %[1]s NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	admin_notes    TEXT NOT NULL DEFAULT '',
	fulfilled_date %[1]s
);
CREATE INDEX IF NOT EXISTS idx_blood_requests_status ON blood_requests (status);
CREATE INDEX IF NOT EXISTS idx_blood_requests_request_date ON blood_requests (request_date);
`

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, pool *database.ConnectionPool) error {
	d, err := dialectFor(pool.Driver())
	if err != nil {
		return err
	}
	for _, stmt := range strings.Split(fmt.Sprintf(schemaTemplate, d.timestamp), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := pool.GetDB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s schema: %w", d.name, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// SQLDonorRepository implements domain.DonorRepository on postgres or sqlite.
type SQLDonorRepository struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// NewSQLDonorRepository creates a donor repository on an open pool
func NewSQLDonorRepository(pool *database.ConnectionPool, logger *slog.Logger) (*SQLDonorRepository, error) {
	d, err := dialectFor(pool.Driver())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLDonorRepository{db: pool.GetDB(), dialect: d, logger: logger}, nil
}

// Create inserts a donor
func (r *SQLDonorRepository) Create(ctx context.Context, donor domain.Donor) error {
	query := r.dialect.bind(`
		INSERT INTO donors (id, name, age, blood_group, city, contact, email, registration_date, last_donation_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		donor.ID,
		donor.Name,
		donor.Age,
		string(donor.BloodGroup),
		donor.City,
		donor.Contact,
		donor.Email,
		donor.RegistrationDate.UTC(),
		nullTime(donor.LastDonationDate),
	)
	if err != nil {
		if r.dialect.isDuplicate(err) {
			return fmt.Errorf("donor %s: %w", donor.ID, ErrDuplicate)
		}
		r.logger.Error("failed to create donor",
			slog.String("donor_id", donor.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create donor: %w", err)
	}
	return nil
}

// List returns all donors, newest registration first
func (r *SQLDonorRepository) List(ctx context.Context) ([]domain.Donor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, age, blood_group, city, contact, email, registration_date, last_donation_date
		FROM donors
		ORDER BY registration_date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	defer rows.Close()

	var donors []domain.Donor
	for rows.Next() {
		var (
			d         domain.Donor
			group     string
			lastGiven sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Age, &group, &d.City, &d.Contact, &d.Email, &d.RegistrationDate, &lastGiven); err != nil {
			return nil, fmt.Errorf("failed to scan donor: %w", err)
		}
		d.BloodGroup = domain.BloodGroup(group)
		d.RegistrationDate = d.RegistrationDate.UTC()
		d.LastDonationDate = timePtr(lastGiven)
		donors = append(donors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	return donors, nil
}

// SQLRequestRepository implements domain.RequestRepository on postgres or sqlite.
type SQLRequestRepository struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// NewSQLRequestRepository creates a request repository on an open pool
func NewSQLRequestRepository(pool *database.ConnectionPool, logger *slog.Logger) (*SQLRequestRepository, error) {
	d, err := dialectFor(pool.Driver())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLRequestRepository{db: pool.GetDB(), dialect: d, logger: logger}, nil
}

const requestColumns = `id, requester_name, requester_type, blood_group, urgency_level, city, contact, email,
	units_needed, request_date, status, admin_notes, fulfilled_date`

func scanRequest(s scanner) (domain.BloodRequest, error) {
	var (
		req       domain.BloodRequest
		group     string
		urgency   string
		status    string
		fulfilled sql.NullTime
	)
	err := s.Scan(
		&req.ID,
		&req.RequesterName,
		&req.RequesterType,
		&group,
		&urgency,
		&req.City,
		&req.Contact,
		&req.Email,
		&req.UnitsNeeded,
		&req.RequestDate,
		&status,
		&req.AdminNotes,
		&fulfilled,
	)
	if err != nil {
		return domain.BloodRequest{}, err
	}
	req.BloodGroup = domain.BloodGroup(group)
	req.UrgencyLevel = domain.Urgency(urgency)
	req.Status = domain.Status(status)
	req.RequestDate = req.RequestDate.UTC()
	req.FulfilledDate = timePtr(fulfilled)
	return req, nil
}

// Create inserts a request
func (r *SQLRequestRepository) Create(ctx context.Context, request domain.BloodRequest) error {
	query := r.dialect.bind(`
		INSERT INTO blood_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.RequesterName,
		request.RequesterType,
		string(request.BloodGroup),
		string(request.UrgencyLevel),
		request.City,
		request.Contact,
		request.Email,
		request.UnitsNeeded,
		request.RequestDate.UTC(),
		string(request.Status),
		request.AdminNotes,
		nullTime(request.FulfilledDate),
	)
	if err != nil {
		if r.dialect.isDuplicate(err) {
			return fmt.Errorf("request %s: %w", request.ID, ErrDuplicate)
		}
		r.logger.Error("failed to create request",
			slog.String("request_id", request.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// Get retrieves a request by ID
func (r *SQLRequestRepository) Get(ctx context.Context, id string) (domain.BloodRequest, error) {
	query := r.dialect.bind(`SELECT ` + requestColumns + ` FROM blood_requests WHERE id = ?`)
	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BloodRequest{}, notFound(id)
		}
		return domain.BloodRequest{}, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// List returns all requests, newest first
func (r *SQLRequestRepository) List(ctx context.Context) ([]domain.BloodRequest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM blood_requests ORDER BY request_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.BloodRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

// Update locks the row inside a transaction, applies fn and writes the
// mutable columns back. Nothing is written when fn fails.
func (r *SQLRequestRepository) Update(ctx context.Context, id string, fn func(*domain.BloodRequest) error) (domain.BloodRequest, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.BloodRequest{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := r.dialect.bind(`SELECT ` + requestColumns + ` FROM blood_requests WHERE id = ?` + r.dialect.forUpdate)
	req, err := scanRequest(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BloodRequest{}, notFound(id)
		}
		return domain.BloodRequest{}, fmt.Errorf("failed to load request for update: %w", err)
	}

	if err := fn(&req); err != nil {
		return domain.BloodRequest{}, err
	}

	update := r.dialect.bind(`
		UPDATE blood_requests
		SET status = ?, admin_notes = ?, fulfilled_date = ?
		WHERE id = ?
	`)
	if _, err := tx.ExecContext(ctx, update, string(req.Status), req.AdminNotes, nullTime(req.FulfilledDate), id); err != nil {
		r.logger.Error("failed to update request",
			slog.String("request_id", id),
			slog.String("error", err.Error()),
		)
		return domain.BloodRequest{}, fmt.Errorf("failed to update request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.BloodRequest{}, fmt.Errorf("failed to commit request update: %w", err)
	}
	return req, nil
}

// NewSQLStore migrates the schema and returns a Store on pool.
func NewSQLStore(ctx context.Context, pool *database.ConnectionPool, logger *slog.Logger) (*Store, error) {
	if err := Migrate(ctx, pool); err != nil {
		return nil, err
	}
	donors, err := NewSQLDonorRepository(pool, logger)
	if err != nil {
		return nil, err
	}
	requests, err := NewSQLRequestRepository(pool, logger)
	if err != nil {
		return nil, err
	}
	return &Store{
		Backend:  pool.Driver(),
		Donors:   donors,
		Requests: requests,
		ping:     pool.Health,
		close:    pool.Close,
	}, nil
}
