package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"carebase/internal/errors"
	"carebase/pkg/contracts/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS patients (
	person_id       TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	gender          TEXT NOT NULL DEFAULT '',
	birth_date      TEXT,
	birth_date_raw  TEXT NOT NULL DEFAULT '',
	hometown        TEXT NOT NULL DEFAULT '',
	home_address    TEXT NOT NULL DEFAULT '',
	father_name     TEXT NOT NULL DEFAULT '',
	father_phone    TEXT NOT NULL DEFAULT '',
	father_id       TEXT NOT NULL DEFAULT '',
	mother_name     TEXT NOT NULL DEFAULT '',
	mother_phone    TEXT NOT NULL DEFAULT '',
	mother_id       TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_patients_natural_key ON patients(name, hometown, birth_date);

CREATE TABLE IF NOT EXISTS check_ins (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	person_id     TEXT NOT NULL REFERENCES patients(person_id),
	check_in_date TEXT,
	attendees     TEXT NOT NULL DEFAULT '',
	details       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_check_ins_person ON check_ins(person_id);

CREATE TABLE IF NOT EXISTS family_service_records (
	person_id      TEXT NOT NULL REFERENCES patients(person_id),
	year_month     TEXT NOT NULL,
	service_count  INTEGER NOT NULL DEFAULT 0,
	residence_days INTEGER NOT NULL DEFAULT 0,
	notes          TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (person_id, year_month)
);
`

// SQLiteStore is the persistent Store backed by a SQLite database. The
// upsert runs inside one IMMEDIATE-style transaction per record, which
// gives the read-then-write atomicity the ingestion contract requires.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// bootstraps the tables.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.NewStorageError("open database", err)
	}
	// SQLite serializes writers; one connection avoids lock contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.NewStorageError("enable foreign keys", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewStorageError("bootstrap schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// FindByNaturalKey implements Store.
func (s *SQLiteStore) FindByNaturalKey(ctx context.Context, key domain.NaturalKey) (*domain.PatientRecord, error) {
	row := s.db.QueryRowContext(ctx, selectPatient+naturalKeyWhere(key), naturalKeyArgs(key)...)
	rec, err := scanPatient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageError("find patient by natural key", err)
	}
	return rec, nil
}

// UpsertPatient implements Store. The lookup and the write happen in
// the same transaction. Identity resolution follows the same rule as
// the in-memory store: an incoming record with a birth date falls back
// to the stored date-less row, and one without a birth date falls back
// to any row with the same name and hometown.
func (s *SQLiteStore) UpsertPatient(ctx context.Context, incoming domain.PatientRecord) (*domain.PatientRecord, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, errors.NewStorageError("begin upsert transaction", err)
	}
	defer tx.Rollback()

	key := incoming.Key()
	existing, err := findInTx(ctx, tx, key)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		if key.BirthDate != nil {
			fallback := domain.NaturalKey{Name: key.Name, Hometown: key.Hometown}
			existing, err = findInTx(ctx, tx, fallback)
		} else {
			existing, err = findByNameHometownInTx(ctx, tx, key)
		}
		if err != nil {
			return nil, false, err
		}
	}

	now := time.Now().UTC()

	if existing != nil {
		if MergeFillForward(existing, incoming) {
			existing.UpdatedAt = now
			if err := updatePatient(ctx, tx, existing); err != nil {
				return nil, false, err
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, false, errors.NewStorageError("commit upsert", err)
		}
		return existing, false, nil
	}

	created := incoming
	created.PersonID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now
	if err := insertPatient(ctx, tx, &created); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, errors.NewStorageError("commit upsert", err)
	}
	return &created, true, nil
}

// AddCheckIn implements Store.
func (s *SQLiteStore) AddCheckIn(ctx context.Context, rec domain.CheckInRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO check_ins (person_id, check_in_date, attendees, details) VALUES (?, ?, ?, ?)`,
		rec.PersonID, dateOrNil(rec.CheckInDate), rec.Attendees, rec.Details)
	if err != nil {
		return errors.NewStorageError("insert check-in", err)
	}
	return nil
}

// AddServiceRecord implements Store.
func (s *SQLiteStore) AddServiceRecord(ctx context.Context, rec domain.FamilyServiceRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO family_service_records
		 (person_id, year_month, service_count, residence_days, notes)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.PersonID, rec.YearMonth, rec.ServiceCount, rec.ResidenceDays, rec.Notes)
	if err != nil {
		return errors.NewStorageError("insert family-service record", err)
	}
	return nil
}

// QueryPatients implements Store.
func (s *SQLiteStore) QueryPatients(ctx context.Context) ([]domain.PatientRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.person_id, p.name, p.gender, p.birth_date, p.birth_date_raw,
		       p.hometown, p.home_address,
		       p.father_name, p.father_phone, p.father_id,
		       p.mother_name, p.mother_phone, p.mother_id,
		       p.created_at, p.updated_at,
		       COUNT(c.id), MAX(c.check_in_date)
		FROM patients p
		LEFT JOIN check_ins c ON c.person_id = p.person_id
		GROUP BY p.person_id
		ORDER BY MAX(c.check_in_date) DESC, p.name`)
	if err != nil {
		return nil, errors.NewStorageError("query patients", err)
	}
	defer rows.Close()

	var out []domain.PatientRecord
	for rows.Next() {
		var (
			rec                  domain.PatientRecord
			birth, latest        sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&rec.PersonID, &rec.Name, &rec.Gender, &birth, &rec.BirthDateRaw,
			&rec.Hometown, &rec.HomeAddress,
			&rec.Father.Name, &rec.Father.Phone, &rec.Father.IDNumber,
			&rec.Mother.Name, &rec.Mother.Phone, &rec.Mother.IDNumber,
			&createdAt, &updatedAt,
			&rec.CheckInCount, &latest); err != nil {
			return nil, errors.NewStorageError("scan patient row", err)
		}
		rec.Father.Role = domain.GuardianFather
		rec.Mother.Role = domain.GuardianMother
		rec.BirthDate = parseStoredDate(birth)
		rec.LatestCheckIn = parseStoredDate(latest)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate patients", err)
	}
	return out, nil
}

// QueryServiceRecords implements Store.
func (s *SQLiteStore) QueryServiceRecords(ctx context.Context, filter ServiceFilter) ([]domain.FamilyServiceRecord, error) {
	query := `SELECT person_id, year_month, service_count, residence_days, notes
	          FROM family_service_records WHERE 1=1`
	args := []interface{}{}
	if filter.PersonID != "" {
		query += " AND person_id = ?"
		args = append(args, filter.PersonID)
	}
	if filter.YearMonth != "" {
		query += " AND year_month = ?"
		args = append(args, filter.YearMonth)
	}
	query += " ORDER BY year_month DESC, person_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorageError("query family-service records", err)
	}
	defer rows.Close()

	var out []domain.FamilyServiceRecord
	for rows.Next() {
		var rec domain.FamilyServiceRecord
		if err := rows.Scan(&rec.PersonID, &rec.YearMonth, &rec.ServiceCount,
			&rec.ResidenceDays, &rec.Notes); err != nil {
			return nil, errors.NewStorageError("scan family-service row", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate family-service records", err)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

const selectPatient = `
	SELECT person_id, name, gender, birth_date, birth_date_raw, hometown, home_address,
	       father_name, father_phone, father_id, mother_name, mother_phone, mother_id,
	       created_at, updated_at
	FROM patients WHERE `

func naturalKeyWhere(key domain.NaturalKey) string {
	if key.BirthDate == nil {
		return "name = ? AND hometown = ? AND birth_date IS NULL"
	}
	return "name = ? AND hometown = ? AND birth_date = ?"
}

func naturalKeyArgs(key domain.NaturalKey) []interface{} {
	args := []interface{}{key.Name, key.Hometown}
	if key.BirthDate != nil {
		args = append(args, key.BirthDate.Format("2006-01-02"))
	}
	return args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (*domain.PatientRecord, error) {
	var (
		rec                  domain.PatientRecord
		birth                sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&rec.PersonID, &rec.Name, &rec.Gender, &birth, &rec.BirthDateRaw,
		&rec.Hometown, &rec.HomeAddress,
		&rec.Father.Name, &rec.Father.Phone, &rec.Father.IDNumber,
		&rec.Mother.Name, &rec.Mother.Phone, &rec.Mother.IDNumber,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.Father.Role = domain.GuardianFather
	rec.Mother.Role = domain.GuardianMother
	rec.BirthDate = parseStoredDate(birth)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

func findInTx(ctx context.Context, tx *sql.Tx, key domain.NaturalKey) (*domain.PatientRecord, error) {
	row := tx.QueryRowContext(ctx, selectPatient+naturalKeyWhere(key), naturalKeyArgs(key)...)
	rec, err := scanPatient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageError("find patient in transaction", err)
	}
	return rec, nil
}

// findByNameHometownInTx resolves a date-less lookup against any stored
// row with the same name and hometown, oldest first, mirroring the
// in-memory store's convergence rule.
func findByNameHometownInTx(ctx context.Context, tx *sql.Tx, key domain.NaturalKey) (*domain.PatientRecord, error) {
	row := tx.QueryRowContext(ctx,
		selectPatient+"name = ? AND hometown = ? ORDER BY created_at, person_id LIMIT 1",
		key.Name, key.Hometown)
	rec, err := scanPatient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageError("find patient by name and hometown", err)
	}
	return rec, nil
}

func insertPatient(ctx context.Context, tx *sql.Tx, rec *domain.PatientRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO patients
		(person_id, name, gender, birth_date, birth_date_raw, hometown, home_address,
		 father_name, father_phone, father_id, mother_name, mother_phone, mother_id,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.PersonID, rec.Name, rec.Gender, dateOrNil(rec.BirthDate), rec.BirthDateRaw,
		rec.Hometown, rec.HomeAddress,
		rec.Father.Name, rec.Father.Phone, rec.Father.IDNumber,
		rec.Mother.Name, rec.Mother.Phone, rec.Mother.IDNumber,
		rec.CreatedAt.Format(time.RFC3339), rec.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return errors.NewStorageError("insert patient", err)
	}
	return nil
}

func updatePatient(ctx context.Context, tx *sql.Tx, rec *domain.PatientRecord) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE patients SET
		  gender = ?, birth_date = ?, birth_date_raw = ?, hometown = ?, home_address = ?,
		  father_name = ?, father_phone = ?, father_id = ?,
		  mother_name = ?, mother_phone = ?, mother_id = ?,
		  updated_at = ?
		WHERE person_id = ?`,
		rec.Gender, dateOrNil(rec.BirthDate), rec.BirthDateRaw, rec.Hometown, rec.HomeAddress,
		rec.Father.Name, rec.Father.Phone, rec.Father.IDNumber,
		rec.Mother.Name, rec.Mother.Phone, rec.Mother.IDNumber,
		rec.UpdatedAt.Format(time.RFC3339), rec.PersonID)
	if err != nil {
		return errors.NewStorageError("update patient", err)
	}
	return nil
}

func dateOrNil(d *time.Time) interface{} {
	if d == nil {
		return nil
	}
	return d.Format("2006-01-02")
}

func parseStoredDate(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d, err := time.Parse("2006-01-02", ns.String)
	if err != nil {
		return nil
	}
	return &d
}
