package calculations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE calculations (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    inputs      BLOB NOT NULL,
    result      REAL,
    error_kind  TEXT,
    error       TEXT,
    iterations  INTEGER NOT NULL DEFAULT 0,
    duration_us INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);
CREATE INDEX idx_calculations_created_at ON calculations(created_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	// Every pooled connection would get its own in-memory database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func floatPtr(v float64) *float64 { return &v }

func TestNewRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	assert.NotNil(t, repo)
}

func TestRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	ctx := context.Background()

	calc := &Calculation{
		Kind:       KindIRR,
		Inputs:     IRRRequest{Values: []float64{-100, 110}},
		Result:     floatPtr(0.1),
		Iterations: 2,
		Duration:   15 * time.Microsecond,
	}
	require.NoError(t, repo.Create(ctx, calc))
	require.NotEmpty(t, calc.ID)
	require.False(t, calc.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, calc.ID)
	require.NoError(t, err)

	assert.Equal(t, calc.ID, got.ID)
	assert.Equal(t, KindIRR, got.Kind)
	require.NotNil(t, got.Result)
	assert.Equal(t, 0.1, *got.Result)
	assert.Equal(t, 2, got.Iterations)
	assert.Equal(t, 15*time.Microsecond, got.Duration)
	assert.Equal(t, calc.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())
	assert.True(t, got.Succeeded())

	inputs, ok := got.Inputs.(map[string]interface{})
	require.True(t, ok)
	values, ok := inputs["values"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{-100.0, 110.0}, values)
	assert.NotContains(t, inputs, "guess")
}

func TestRepository_CreateFailedCalculation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	ctx := context.Background()

	calc := &Calculation{
		Kind:      KindPV,
		Inputs:    PVRequest{Rate: 0.05, Nper: 10, Pmt: -100, When: "middle"},
		ErrorKind: "invalid_argument",
		Error:     "invalid argument: unknown payment timing \"middle\"",
	}
	require.NoError(t, repo.Create(ctx, calc))

	got, err := repo.GetByID(ctx, calc.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Result)
	assert.False(t, got.Succeeded())
	assert.Equal(t, "invalid_argument", got.ErrorKind)
	assert.Equal(t, calc.Error, got.Error)

	inputs := got.Inputs.(map[string]interface{})
	assert.Equal(t, "middle", inputs["when"])
	assert.Equal(t, 0.05, inputs["rate"])
}

func TestRepository_CreateRejectsUnknownKind(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	err := repo.Create(context.Background(), &Calculation{Kind: "pmt", Inputs: struct{}{}})
	assert.Error(t, err)
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_ListRecent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	kinds := []Kind{KindPV, KindNPV, KindIRR, KindNPV, KindFV}
	for i, kind := range kinds {
		require.NoError(t, repo.Create(ctx, &Calculation{
			Kind:      kind,
			Inputs:    NPVRequest{Rate: float64(i)},
			Result:    floatPtr(float64(i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := repo.ListRecent(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, KindFV, all[0].Kind)
	assert.Equal(t, KindPV, all[4].Kind)

	limited, err := repo.ListRecent(ctx, 2, "")
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	npv, err := repo.ListRecent(ctx, 10, KindNPV)
	require.NoError(t, err)
	require.Len(t, npv, 2)
	assert.Equal(t, 3.0, *npv[0].Result)
	assert.Equal(t, 1.0, *npv[1].Result)
}

func TestRepository_DeleteOlderThanAndCount(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, time.Hour} {
		require.NoError(t, repo.Create(ctx, &Calculation{
			Kind:      KindNPV,
			Inputs:    NPVRequest{},
			CreatedAt: now.Add(-age),
		}))
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
