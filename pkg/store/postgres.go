package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xhad/sitedocs/internal/models"
)

// PersistenceError wraps a store failure (constraint violation, connectivity
// loss). The pipeline records it per document; it never aborts a batch.
type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed on %s: %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const defaultQueryLimit = 100

type PostgresConfig struct {
	ConnString string
}

// PostgresStore is the relational adapter for extracted records. The
// underlying pool is safe for concurrent writers; each upsert batch runs in
// a single transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, config PostgresConfig) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// CreateSchema idempotently creates the three record tables with their
// constraints. Safe to call repeatedly.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS project_tasks (
			id BIGSERIAL PRIMARY KEY,
			task_id INTEGER NOT NULL UNIQUE,
			task_name TEXT NOT NULL,
			duration_days INTEGER NOT NULL CHECK (duration_days >= 0),
			start_date DATE NOT NULL,
			finish_date DATE NOT NULL CHECK (finish_date >= start_date),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS cost_items (
			id BIGSERIAL PRIMARY KEY,
			item_name TEXT NOT NULL,
			quantity NUMERIC(15,2) NOT NULL CHECK (quantity >= 0),
			unit_price NUMERIC(15,2) NOT NULL CHECK (unit_price >= 0),
			total_cost NUMERIC(20,2) NOT NULL CHECK (total_cost >= 0),
			cost_type TEXT NOT NULL CHECK (cost_type IN ('foreign', 'local')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS regulatory_rules (
			id BIGSERIAL PRIMARY KEY,
			rule_id TEXT NOT NULL UNIQUE,
			rule_summary TEXT NOT NULL,
			measurement_basis TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return &PersistenceError{Table: "schema", Err: err}
		}
	}
	return nil
}

// UpsertTasks inserts tasks keyed by task_id; re-extraction of the same task
// updates the existing row. Returns the number of records written.
func (s *PostgresStore) UpsertTasks(ctx context.Context, tasks []models.ProjectTask) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	stmt := `
		INSERT INTO project_tasks (task_id, task_name, duration_days, start_date, finish_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id) DO UPDATE SET
			task_name = EXCLUDED.task_name,
			duration_days = EXCLUDED.duration_days,
			start_date = EXCLUDED.start_date,
			finish_date = EXCLUDED.finish_date,
			updated_at = now()`

	count, err := s.execBatch(ctx, "project_tasks", len(tasks), func(tx pgx.Tx, i int) error {
		t := tasks[i]
		_, err := tx.Exec(ctx, stmt, t.TaskID, t.TaskName, t.DurationDays, t.StartDate, t.FinishDate)
		return err
	})
	return count, err
}

// InsertCostItems appends cost items; they carry no natural key.
func (s *PostgresStore) InsertCostItems(ctx context.Context, items []models.CostItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	stmt := `
		INSERT INTO cost_items (item_name, quantity, unit_price, total_cost, cost_type)
		VALUES ($1, $2, $3, $4, $5)`

	count, err := s.execBatch(ctx, "cost_items", len(items), func(tx pgx.Tx, i int) error {
		it := items[i]
		_, err := tx.Exec(ctx, stmt, it.ItemName, it.Quantity, it.UnitPrice, it.TotalCost, string(it.CostType))
		return err
	})
	return count, err
}

// UpsertRules inserts rules keyed by rule_id, updating on conflict.
func (s *PostgresStore) UpsertRules(ctx context.Context, rules []models.RegulatoryRule) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}

	stmt := `
		INSERT INTO regulatory_rules (rule_id, rule_summary, measurement_basis)
		VALUES ($1, $2, $3)
		ON CONFLICT (rule_id) DO UPDATE SET
			rule_summary = EXCLUDED.rule_summary,
			measurement_basis = EXCLUDED.measurement_basis,
			updated_at = now()`

	count, err := s.execBatch(ctx, "regulatory_rules", len(rules), func(tx pgx.Tx, i int) error {
		r := rules[i]
		_, err := tx.Exec(ctx, stmt, r.RuleID, r.RuleSummary, r.MeasurementBasis)
		return err
	})
	return count, err
}

// execBatch runs n statements in one transaction so a document's records are
// written atomically.
func (s *PostgresStore) execBatch(ctx context.Context, table string, n int, exec func(tx pgx.Tx, i int) error) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, &PersistenceError{Table: table, Err: err}
	}
	defer tx.Rollback(ctx)

	for i := 0; i < n; i++ {
		if err := exec(tx, i); err != nil {
			return 0, &PersistenceError{Table: table, Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &PersistenceError{Table: table, Err: err}
	}
	return n, nil
}

// QueryTasks returns up to limit tasks ordered by task_id. A non-positive
// limit falls back to the default of 100.
func (s *PostgresStore) QueryTasks(ctx context.Context, limit int) ([]models.ProjectTask, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT task_id, task_name, duration_days, start_date, finish_date
		FROM project_tasks
		ORDER BY task_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, &PersistenceError{Table: "project_tasks", Err: err}
	}
	defer rows.Close()

	var tasks []models.ProjectTask
	for rows.Next() {
		var t models.ProjectTask
		if err := rows.Scan(&t.TaskID, &t.TaskName, &t.DurationDays, &t.StartDate, &t.FinishDate); err != nil {
			return nil, &PersistenceError{Table: "project_tasks", Err: err}
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// QueryCostItems returns up to limit cost items in insertion order.
func (s *PostgresStore) QueryCostItems(ctx context.Context, limit int) ([]models.CostItem, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT item_name, quantity, unit_price, total_cost, cost_type
		FROM cost_items
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, &PersistenceError{Table: "cost_items", Err: err}
	}
	defer rows.Close()

	var items []models.CostItem
	for rows.Next() {
		var it models.CostItem
		var costType string
		if err := rows.Scan(&it.ItemName, &it.Quantity, &it.UnitPrice, &it.TotalCost, &costType); err != nil {
			return nil, &PersistenceError{Table: "cost_items", Err: err}
		}
		it.CostType = models.CostType(costType)
		items = append(items, it)
	}
	return items, rows.Err()
}

// ClearAll deletes every record from the three tables and reports the counts.
func (s *PostgresStore) ClearAll(ctx context.Context) (map[string]int64, error) {
	deleted := make(map[string]int64, 3)
	for _, table := range []string{"project_tasks", "cost_items", "regulatory_rules"} {
		tag, err := s.pool.Exec(ctx, "DELETE FROM "+table)
		if err != nil {
			return deleted, &PersistenceError{Table: table, Err: err}
		}
		deleted[table] = tag.RowsAffected()
	}
	return deleted, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
