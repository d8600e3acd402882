package repository // repository for shelter persistence

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons
	"strings"      // strings for driver error inspection
	"time"         // time for timestamp conversion

	"github.com/go-sql-driver/mysql"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
)

// mysqlDuplicateEntry is the MySQL server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// ShelterRepo manages persistence for shelters. Queries use '?' placeholders
// only, so the same statements run on MySQL and SQLite.
//
// Timestamps are stored as BIGINT microseconds since the Unix epoch. Both
// backends round-trip them exactly, which keeps the in-memory copy and the
// stored row byte-for-byte comparable.
type ShelterRepo struct {
	db *sql.DB
}

// NewShelterRepo constructs a ShelterRepo given a DB handle.
func NewShelterRepo(db *sql.DB) *ShelterRepo {
	return &ShelterRepo{db: db}
}

// DB exposes the underlying sql.DB, mainly for health checks.
func (r *ShelterRepo) DB() *sql.DB {
	return r.db
}

const shelterColumns = `id, name, address, latitude, longitude, total_beds, available_beds,
	allows_pets, requires_sobriety, accepts_families, contact_phone, contact_email,
	last_updated_us, updated_by, created_at_us, revision`

// rowScanner lets scanShelter accept both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanShelter(row rowScanner) (model.Shelter, error) {
	var s model.Shelter
	var updatedUS, createdUS int64
	err := row.Scan(&s.ID, &s.Name, &s.Address, &s.Latitude, &s.Longitude, &s.TotalBeds, &s.AvailableBeds,
		&s.AllowsPets, &s.RequiresSobriety, &s.AcceptsFamilies, &s.ContactPhone, &s.ContactEmail,
		&updatedUS, &s.UpdatedBy, &createdUS, &s.Revision)
	if err != nil {
		return model.Shelter{}, err
	}
	s.LastUpdated = time.UnixMicro(updatedUS).UTC()
	s.CreatedAt = time.UnixMicro(createdUS).UTC()
	return s, nil
}

// ListShelters returns every stored shelter ordered by name then id.
func (r *ShelterRepo) ListShelters(ctx context.Context) ([]model.Shelter, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+shelterColumns+` FROM shelters ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Shelter
	for rows.Next() {
		s, err := scanShelter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetShelter fetches a single shelter. It returns ErrNotFound when the id
// does not exist.
func (r *ShelterRepo) GetShelter(ctx context.Context, id string) (model.Shelter, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+shelterColumns+` FROM shelters WHERE id = ?`, id)
	s, err := scanShelter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Shelter{}, ErrNotFound
	}
	return s, err
}

// InsertShelter stores a new shelter exactly as given, revision included.
// A colliding id yields ErrDuplicate.
func (r *ShelterRepo) InsertShelter(ctx context.Context, s model.Shelter) error {
	const q = `INSERT INTO shelters (` + shelterColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.Name, s.Address, s.Latitude, s.Longitude, s.TotalBeds, s.AvailableBeds,
		s.AllowsPets, s.RequiresSobriety, s.AcceptsFamilies, s.ContactPhone, s.ContactEmail,
		s.LastUpdated.UnixMicro(), s.UpdatedBy, s.CreatedAt.UnixMicro(), s.Revision)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateShelter writes the mutable columns of s, but only if the stored
// revision still equals expectedRevision. When no row matches it returns
// ErrNotFound if the id is unknown and ErrConflict otherwise.
func (r *ShelterRepo) UpdateShelter(ctx context.Context, s model.Shelter, expectedRevision int64) error {
	const q = `UPDATE shelters
		SET available_beds = ?, allows_pets = ?, requires_sobriety = ?, accepts_families = ?,
		    last_updated_us = ?, updated_by = ?, revision = ?
		WHERE id = ? AND revision = ?`
	res, err := r.db.ExecContext(ctx, q,
		s.AvailableBeds, s.AllowsPets, s.RequiresSobriety, s.AcceptsFamilies,
		s.LastUpdated.UnixMicro(), s.UpdatedBy, s.Revision,
		s.ID, expectedRevision)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM shelters WHERE id = ?`, s.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

// isDuplicate recognizes unique-key violations from either driver.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
