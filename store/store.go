// Package store persists backtest results in a SQLite database.
//
// A database holds any number of runs keyed by the run id of the
// BacktestResult:
//
//	st, err := store.Open(ctx, "backtests.db", logger)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	if err := st.SaveBacktest(ctx, res, ds.Freq()); err != nil {
//	    return err
//	}
//	rows, err := st.LoadMetrics(ctx, res.RunID)
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/pipeline"
)

// ErrRunNotFound is returned when a run id is not in the database.
var ErrRunNotFound = errors.New("backtest run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	freq_ns    INTEGER NOT NULL,
	n_folds    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS metrics (
	run_id  TEXT NOT NULL REFERENCES runs(run_id),
	fold    INTEGER NOT NULL,
	segment TEXT NOT NULL,
	metric  TEXT NOT NULL,
	value   REAL
);
CREATE TABLE IF NOT EXISTS folds (
	run_id      TEXT NOT NULL REFERENCES runs(run_id),
	fold        INTEGER NOT NULL,
	train_start TEXT NOT NULL,
	train_end   TEXT NOT NULL,
	test_start  TEXT NOT NULL,
	test_end    TEXT NOT NULL,
	PRIMARY KEY (run_id, fold)
);
CREATE TABLE IF NOT EXISTS forecasts (
	run_id  TEXT NOT NULL REFERENCES runs(run_id),
	segment TEXT NOT NULL,
	ts      TEXT NOT NULL,
	name    TEXT NOT NULL,
	value   REAL
);
CREATE INDEX IF NOT EXISTS metrics_run ON metrics(run_id);
CREATE INDEX IF NOT EXISTS forecasts_run ON forecasts(run_id);
`

// Store is a SQLite backed store of backtest runs.
type Store struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// Open opens or creates the database at path and ensures the schema exists.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, logger logrus.FieldLogger) (*Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives in a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db, logger: logger.WithField("store", path)}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBacktest writes res in one transaction. freq is the frequency of the
// backtested dataset and is needed to load the forecast back.
func (s *Store) SaveBacktest(ctx context.Context, res *pipeline.BacktestResult, freq time.Duration) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, freq_ns, n_folds) VALUES (?, ?, ?, ?)`,
		res.RunID, time.Now().UTC().Format(time.RFC3339Nano), int64(freq), len(res.Folds)); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	metricStmt, err := tx.PrepareContext(ctx, `INSERT INTO metrics (run_id, fold, segment, metric, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = metricStmt.Close() }()
	for _, rows := range [][]pipeline.MetricRow{res.Metrics, res.Aggregated} {
		for _, r := range rows {
			if _, err = metricStmt.ExecContext(ctx, res.RunID, r.Fold, r.Segment, r.Metric, nullFloat(r.Value)); err != nil {
				return fmt.Errorf("failed to insert metric: %w", err)
			}
		}
	}

	for _, f := range res.Folds {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO folds (run_id, fold, train_start, train_end, test_start, test_end) VALUES (?, ?, ?, ?, ?, ?)`,
			res.RunID, f.Fold, formatTime(f.TrainStart), formatTime(f.TrainEnd), formatTime(f.TestStart), formatTime(f.TestEnd)); err != nil {
			return fmt.Errorf("failed to insert fold: %w", err)
		}
	}

	if res.Forecast != nil {
		forecastStmt, err := tx.PrepareContext(ctx, `INSERT INTO forecasts (run_id, segment, ts, name, value) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() { _ = forecastStmt.Close() }()
		timestamps := res.Forecast.Timestamps()
		for _, seg := range res.Forecast.Segments() {
			for _, c := range res.Forecast.Columns() {
				for i, ts := range timestamps {
					if _, err := forecastStmt.ExecContext(ctx, res.RunID, seg, formatTime(ts), c, nullFloat(res.Forecast.Value(seg, c, i))); err != nil {
						return fmt.Errorf("failed to insert forecast: %w", err)
					}
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"run_id":      res.RunID,
		"metric_rows": len(res.Metrics) + len(res.Aggregated),
		"folds":       len(res.Folds),
	}).Info("backtest saved")
	return nil
}

// Runs returns the stored run ids, oldest first.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// LoadMetrics returns the metric rows of a run in the order they were saved.
// Aggregated rows have Fold -1 and follow the per-fold rows.
func (s *Store) LoadMetrics(ctx context.Context, runID string) ([]pipeline.MetricRow, error) {
	if err := s.checkRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT fold, segment, metric, value FROM metrics WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []pipeline.MetricRow
	for rows.Next() {
		var r pipeline.MetricRow
		var value sql.NullFloat64
		if err := rows.Scan(&r.Fold, &r.Segment, &r.Metric, &value); err != nil {
			return nil, err
		}
		r.Value = fromNull(value)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadFolds returns the fold windows of a run.
func (s *Store) LoadFolds(ctx context.Context, runID string) ([]pipeline.FoldInfo, error) {
	if err := s.checkRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT fold, train_start, train_end, test_start, test_end FROM folds WHERE run_id = ? ORDER BY fold`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []pipeline.FoldInfo
	for rows.Next() {
		var f pipeline.FoldInfo
		var times [4]string
		if err := rows.Scan(&f.Fold, &times[0], &times[1], &times[2], &times[3]); err != nil {
			return nil, err
		}
		for i, dst := range []*time.Time{&f.TrainStart, &f.TrainEnd, &f.TestStart, &f.TestEnd} {
			if *dst, err = time.Parse(time.RFC3339Nano, times[i]); err != nil {
				return nil, fmt.Errorf("fold %d: %w", f.Fold, err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LoadForecast rebuilds the concatenated backtest forecast of a run.
// Regressor tags are not stored.
func (s *Store) LoadForecast(ctx context.Context, runID string) (*dataset.Dataset, error) {
	var freqNS int64
	err := s.db.QueryRowContext(ctx, `SELECT freq_ns FROM runs WHERE run_id = ?`, runID).Scan(&freqNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	freq := time.Duration(freqNS)

	rows, err := s.db.QueryContext(ctx,
		`SELECT segment, ts, name, value FROM forecasts WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	type cell struct {
		segment, name string
		ts            time.Time
		value         float64
	}
	var cells []cell
	var first, last time.Time
	for rows.Next() {
		var c cell
		var ts string
		var value sql.NullFloat64
		if err := rows.Scan(&c.segment, &ts, &c.name, &value); err != nil {
			return nil, err
		}
		if c.ts, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, err
		}
		c.value = fromNull(value)
		if len(cells) == 0 || c.ts.Before(first) {
			first = c.ts
		}
		if len(cells) == 0 || c.ts.After(last) {
			last = c.ts
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return dataset.New(freq, time.Time{}, 0), nil
	}

	ds := dataset.New(freq, first, int(last.Sub(first)/freq)+1)
	created := make(map[[2]string]bool)
	for _, c := range cells {
		if key := [2]string{c.segment, c.name}; !created[key] {
			if err := ds.Set(c.segment, c.name, nan(ds.Len())); err != nil {
				return nil, err
			}
			created[key] = true
		}
		if err := ds.SetValue(c.segment, c.name, ds.Index(c.ts), c.value); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (s *Store) checkRun(ctx context.Context, runID string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullFloat stores NaN as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func nan(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
