package calculations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// HistoryStore persists calculation records.
type HistoryStore interface {
	Create(ctx context.Context, calc *Calculation) error
	GetByID(ctx context.Context, id string) (*Calculation, error)
	ListRecent(ctx context.Context, limit int, kind Kind) ([]Calculation, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// Repository stores calculation history in calculations.db.
// Inputs are encoded with msgpack.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new calculation history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "calculations").Logger(),
	}
}

// Create inserts calc, assigning an ID and CreatedAt when they are empty.
func (r *Repository) Create(ctx context.Context, calc *Calculation) error {
	if !calc.Kind.Valid() {
		return fmt.Errorf("invalid calculation kind %q", calc.Kind)
	}
	if calc.ID == "" {
		calc.ID = uuid.New().String()
	}
	if calc.CreatedAt.IsZero() {
		calc.CreatedAt = time.Now()
	}

	inputs, err := msgpack.Marshal(calc.Inputs)
	if err != nil {
		return fmt.Errorf("failed to encode inputs: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO calculations
		(id, kind, inputs, result, error_kind, error, iterations, duration_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		calc.ID,
		string(calc.Kind),
		inputs,
		nullFloat(calc.Result),
		nullString(calc.ErrorKind),
		nullString(calc.Error),
		calc.Iterations,
		calc.Duration.Microseconds(),
		calc.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert calculation: %w", err)
	}

	return nil
}

// GetByID returns the calculation with the given id or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id string) (*Calculation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, inputs, result, error_kind, error, iterations, duration_us, created_at
		FROM calculations
		WHERE id = ?
	`, id)

	calc, err := scanCalculation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calculation %s: %w", id, err)
	}

	return calc, nil
}

// ListRecent returns up to limit calculations, newest first. An empty kind
// matches every kind.
func (r *Repository) ListRecent(ctx context.Context, limit int, kind Kind) ([]Calculation, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, kind, inputs, result, error_kind, error, iterations, duration_us, created_at
		FROM calculations`
	args := []interface{}{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	defer rows.Close()

	var calcs []Calculation
	for rows.Next() {
		calc, err := scanCalculation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calculation: %w", err)
		}
		calcs = append(calcs, *calc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calculations: %w", err)
	}

	return calcs, nil
}

// DeleteOlderThan removes calculations created before cutoff and returns the
// number of deleted rows.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM calculations WHERE created_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old calculations: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored calculations.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calculations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count calculations: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCalculation(s scanner) (*Calculation, error) {
	var (
		calc       Calculation
		kind       string
		inputs     []byte
		result     sql.NullFloat64
		errorKind  sql.NullString
		errMessage sql.NullString
		durationUS int64
		createdAt  int64
	)

	if err := s.Scan(&calc.ID, &kind, &inputs, &result, &errorKind, &errMessage,
		&calc.Iterations, &durationUS, &createdAt); err != nil {
		return nil, err
	}

	var decoded map[string]interface{}
	if err := msgpack.Unmarshal(inputs, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode inputs of %s: %w", calc.ID, err)
	}

	calc.Kind = Kind(kind)
	calc.Inputs = decoded
	if result.Valid {
		v := result.Float64
		calc.Result = &v
	}
	calc.ErrorKind = errorKind.String
	calc.Error = errMessage.String
	calc.Duration = time.Duration(durationUS) * time.Microsecond
	calc.CreatedAt = time.UnixMilli(createdAt)

	return &calc, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
