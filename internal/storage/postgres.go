package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/models"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations; the
// (personnel_id, date) constraint turns concurrent duplicate inserts into
// this error.
const pgUniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Personnel ---

func (s *PostgresStore) CreatePersonnel(ctx context.Context, p *models.Personnel) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO personnel (id, first_name, last_name, rank, station_id, photo_key)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.Rank, p.StationID, p.PhotoKey,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create personnel: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPersonnel(ctx context.Context, id uuid.UUID) (*models.Personnel, error) {
	p := &models.Personnel{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, rank, station_id, photo_key, created_at, updated_at
		 FROM personnel WHERE id = $1`, id,
	).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Rank, &p.StationID, &p.PhotoKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get personnel: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPersonnel(ctx context.Context, stationID *uuid.UUID) ([]models.Personnel, error) {
	query := `SELECT id, first_name, last_name, rank, station_id, photo_key, created_at, updated_at
		 FROM personnel`
	args := []interface{}{}
	if stationID != nil {
		query += " WHERE station_id = $1"
		args = append(args, *stationID)
	}
	query += " ORDER BY last_name, first_name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list personnel: %w", err)
	}
	defer rows.Close()

	var personnel []models.Personnel
	for rows.Next() {
		var p models.Personnel
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Rank, &p.StationID, &p.PhotoKey, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan personnel: %w", err)
		}
		personnel = append(personnel, p)
	}
	return personnel, nil
}

func (s *PostgresStore) SetPersonnelPhoto(ctx context.Context, personnelID uuid.UUID, photoKey string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE personnel SET photo_key = $1, updated_at = now() WHERE id = $2`,
		photoKey, personnelID)
	if err != nil {
		return fmt.Errorf("set personnel photo: %w", err)
	}
	return nil
}

// --- Face templates ---

func (s *PostgresStore) AddFaceTemplate(ctx context.Context, t *models.FaceTemplate) error {
	vec := pgvector.NewVector(t.Embedding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO face_templates (id, personnel_id, embedding, confidence, source_key)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		t.ID, t.PersonnelID, vec, t.Confidence, t.SourceKey,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("add face template: %w", err)
	}
	return nil
}

// ListFaceTemplates loads every enrolled template, optionally scoped to one
// station. Individual corrupt rows are skipped and logged; they never abort
// the whole load.
func (s *PostgresStore) ListFaceTemplates(ctx context.Context, stationID *uuid.UUID) ([]models.FaceTemplate, error) {
	query := `SELECT ft.id, ft.personnel_id, ft.embedding, ft.confidence, ft.source_key, ft.created_at
		 FROM face_templates ft`
	args := []interface{}{}
	if stationID != nil {
		query += ` JOIN personnel p ON p.id = ft.personnel_id WHERE p.station_id = $1`
		args = append(args, *stationID)
	}
	query += " ORDER BY ft.personnel_id, ft.created_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list face templates: %w", err)
	}
	defer rows.Close()

	var templates []models.FaceTemplate
	for rows.Next() {
		var t models.FaceTemplate
		var vec pgvector.Vector
		if err := rows.Scan(&t.ID, &t.PersonnelID, &vec, &t.Confidence, &t.SourceKey, &t.CreatedAt); err != nil {
			slog.Warn("skipping unreadable face template", "error", err)
			continue
		}
		t.Embedding = vec.Slice()
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face templates: %w", err)
	}
	return templates, nil
}

func (s *PostgresStore) ListFaceTemplatesForPersonnel(ctx context.Context, personnelID uuid.UUID) ([]models.FaceTemplate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, personnel_id, confidence, source_key, created_at
		 FROM face_templates WHERE personnel_id = $1 ORDER BY created_at DESC`,
		personnelID)
	if err != nil {
		return nil, fmt.Errorf("list face templates: %w", err)
	}
	defer rows.Close()

	var templates []models.FaceTemplate
	for rows.Next() {
		var t models.FaceTemplate
		if err := rows.Scan(&t.ID, &t.PersonnelID, &t.Confidence, &t.SourceKey, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// --- Attendance records ---

func (s *PostgresStore) LastActionAt(ctx context.Context, personnelID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT GREATEST(MAX(time_in), MAX(time_out)) FROM attendance WHERE personnel_id = $1`,
		personnelID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last action: %w", err)
	}
	return last, nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, personnelID uuid.UUID, date time.Time) (*models.AttendanceRecord, error) {
	rec := &models.AttendanceRecord{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, personnel_id, date, time_in, time_out, status, confidence,
		        auto_captured, approved, approved_by, time_in_image, time_out_image, created_at
		 FROM attendance WHERE personnel_id = $1 AND date = $2`,
		personnelID, date,
	).Scan(&rec.ID, &rec.PersonnelID, &rec.Date, &rec.TimeIn, &rec.TimeOut, &rec.Status,
		&rec.Confidence, &rec.AutoCaptured, &rec.Approved, &rec.ApprovedBy,
		&rec.TimeInImage, &rec.TimeOutImage, &rec.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get attendance record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec *models.AttendanceRecord) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO attendance (id, personnel_id, date, time_in, time_out, status, confidence,
		                         auto_captured, approved, approved_by, time_in_image, time_out_image)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING created_at`,
		rec.ID, rec.PersonnelID, rec.Date, rec.TimeIn, rec.TimeOut, rec.Status, rec.Confidence,
		rec.AutoCaptured, rec.Approved, rec.ApprovedBy, rec.TimeInImage, rec.TimeOutImage,
	).Scan(&rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return attendance.ErrRecordExists
		}
		return fmt.Errorf("create attendance record: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, rec *models.AttendanceRecord) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE attendance SET time_in = $1, time_out = $2, status = $3, approved = $4,
		        approved_by = $5, time_in_image = $6, time_out_image = $7
		 WHERE id = $8`,
		rec.TimeIn, rec.TimeOut, rec.Status, rec.Approved,
		rec.ApprovedBy, rec.TimeInImage, rec.TimeOutImage, rec.ID)
	if err != nil {
		return fmt.Errorf("update attendance record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendance.ErrRecordNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendance record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendance.ErrRecordNotFound
	}
	return nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter attendance.RecordFilter) ([]models.AttendanceRecord, error) {
	query := `SELECT a.id, a.personnel_id, a.date, a.time_in, a.time_out, a.status, a.confidence,
	                a.auto_captured, a.approved, a.approved_by, a.time_in_image, a.time_out_image,
	                a.created_at, p.first_name || ' ' || p.last_name
	         FROM attendance a JOIN personnel p ON p.id = a.personnel_id`
	where := ""
	args := []interface{}{}
	argIdx := 1

	addCond := func(cond string, val interface{}) {
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(cond, argIdx)
		args = append(args, val)
		argIdx++
	}

	if filter.PersonnelID != nil {
		addCond("a.personnel_id = $%d", *filter.PersonnelID)
	}
	if filter.StationID != nil {
		addCond("p.station_id = $%d", *filter.StationID)
	}
	if filter.From != nil {
		addCond("a.date >= $%d", *filter.From)
	}
	if filter.To != nil {
		addCond("a.date <= $%d", *filter.To)
	}
	if filter.Status != nil {
		addCond("a.status = $%d", *filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	query += where + fmt.Sprintf(" ORDER BY a.date DESC, a.time_in DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.PersonnelID, &rec.Date, &rec.TimeIn, &rec.TimeOut,
			&rec.Status, &rec.Confidence, &rec.AutoCaptured, &rec.Approved, &rec.ApprovedBy,
			&rec.TimeInImage, &rec.TimeOutImage, &rec.CreatedAt, &rec.PersonnelName); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// --- Pending attendance ---

func (s *PostgresStore) CreatePending(ctx context.Context, p *models.PendingAttendance) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pending_attendance (id, personnel_id, date, kind, image_key, notes)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		p.ID, p.PersonnelID, p.Date, p.Kind, p.ImageKey, p.Notes,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create pending attendance: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPending(ctx context.Context, id uuid.UUID) (*models.PendingAttendance, error) {
	p := &models.PendingAttendance{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, personnel_id, date, kind, image_key, notes, created_at
		 FROM pending_attendance WHERE id = $1`, id,
	).Scan(&p.ID, &p.PersonnelID, &p.Date, &p.Kind, &p.ImageKey, &p.Notes, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending attendance: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]models.PendingAttendance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pa.id, pa.personnel_id, pa.date, pa.kind, pa.image_key, pa.notes, pa.created_at,
		        p.first_name || ' ' || p.last_name
		 FROM pending_attendance pa JOIN personnel p ON p.id = pa.personnel_id
		 ORDER BY pa.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list pending attendance: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingAttendance
	for rows.Next() {
		var p models.PendingAttendance
		if err := rows.Scan(&p.ID, &p.PersonnelID, &p.Date, &p.Kind, &p.ImageKey, &p.Notes,
			&p.CreatedAt, &p.PersonnelName); err != nil {
			return nil, fmt.Errorf("scan pending attendance: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, nil
}

func (s *PostgresStore) DeletePending(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pending_attendance WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pending attendance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendance.ErrPendingNotFound
	}
	return nil
}
