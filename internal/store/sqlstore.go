package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"

	"github.com/countygov/terrasync/internal/apperrors"
	"github.com/countygov/terrasync/internal/telemetry"
	"github.com/countygov/terrasync/internal/types"
)

// SQLStore persists the Job Store through database/sql against any
// MySQL-wire-protocol server, using the same retry-wrapped exec idiom this
// codebase's other SQL-backed storage layer uses for transient server
// errors.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore connects to dsn (a go-sql-driver/mysql data source name) and
// ensures the schema exists.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sql store: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS migrations (
			version INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			applied_at DATETIME NOT NULL,
			duration_ms BIGINT NOT NULL,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sync_pairs (
			id VARCHAR(64) PRIMARY KEY,
			data JSON NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_operations (
			id VARCHAR(64) PRIMARY KEY,
			sync_pair_id VARCHAR(64) NOT NULL,
			state VARCHAR(16) NOT NULL,
			start_time DATETIME NOT NULL,
			data JSON NOT NULL,
			INDEX (sync_pair_id), INDEX (state)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_records (
			id VARCHAR(64) PRIMARY KEY,
			operation_id VARCHAR(64) NOT NULL,
			data JSON NOT NULL,
			INDEX (operation_id)
		)`,
		`CREATE TABLE IF NOT EXISTS gis_exports (
			id VARCHAR(64) PRIMARY KEY,
			county_id VARCHAR(64) NOT NULL,
			state VARCHAR(16) NOT NULL,
			data JSON NOT NULL,
			INDEX (county_id), INDEX (state)
		)`,
	}
	for i, stmt := range stmts {
		start := time.Now()
		if err := s.exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
		_ = start // the migrations table is created but no rows are written to it
	}
	return nil
}

// exec wraps a SQL statement in the same bounded-backoff retry the storage
// layer uses for transient server-mode errors, so a momentary reconnect does
// not surface as a job-store failure.
func (s *SQLStore) exec(ctx context.Context, query string, args ...any) error {
	ctx, span := telemetry.StartSpan(ctx, "store.exec")
	defer func() { telemetry.EndSpan(span, nil) }()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("exec: %w", err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

func (s *SQLStore) GetSyncPair(ctx context.Context, id string) (*types.SyncPair, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sync_pairs WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("sync pair %q", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "get sync pair %q", id)
	}
	var p types.SyncPair
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperrors.NewInternal("decode sync pair %q: %v", id, err)
	}
	return &p, nil
}

func (s *SQLStore) PutSyncPair(ctx context.Context, pair *types.SyncPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return apperrors.NewInternal("encode sync pair: %v", err)
	}
	return s.exec(ctx, `REPLACE INTO sync_pairs (id, data) VALUES (?, ?)`, pair.ID, data)
}

func (s *SQLStore) DueSyncPairs(ctx context.Context, now time.Time) ([]*types.SyncPair, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM sync_pairs`)
	if err != nil {
		return nil, apperrors.Wrap(err, "query due sync pairs")
	}
	defer rows.Close()

	var due []*types.SyncPair
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Wrap(err, "scan sync pair")
		}
		var p types.SyncPair
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, apperrors.NewInternal("decode sync pair: %v", err)
		}
		if !p.IsActive || p.SyncIntervalMinutes == nil {
			continue
		}
		interval := time.Duration(*p.SyncIntervalMinutes) * time.Minute
		if p.LastSyncTime == nil || !p.LastSyncTime.Add(interval).After(now) {
			due = append(due, &p)
		}
	}
	return due, rows.Err()
}

func (s *SQLStore) MarkLastSync(ctx context.Context, pairID string, ts time.Time, status types.OperationState) error {
	p, err := s.GetSyncPair(ctx, pairID)
	if err != nil {
		return err
	}
	if p.LastSyncTime != nil && ts.Before(*p.LastSyncTime) {
		return apperrors.NewInvalidInput("last_sync_time must advance monotonically for pair %q", pairID)
	}
	p.LastSyncTime = &ts
	p.LastSyncStatus = status
	return s.PutSyncPair(ctx, p)
}

func (s *SQLStore) CreateOperation(ctx context.Context, op *types.SyncOperation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return apperrors.NewInternal("encode sync operation: %v", err)
	}
	if err := s.exec(ctx, `INSERT INTO sync_operations (id, sync_pair_id, state, start_time, data) VALUES (?, ?, ?, ?, ?)`,
		op.ID, op.SyncPairID, string(op.State), op.StartTime, data); err != nil {
		return apperrors.NewConflict("sync operation %q already exists: %v", op.ID, err)
	}
	return nil
}

func (s *SQLStore) UpdateOperationStatus(ctx context.Context, id string, patch OperationPatch) error {
	op, err := s.GetOperation(ctx, id)
	if err != nil {
		return err
	}
	if op.State.Terminal() && patch.State != nil && *patch.State != op.State {
		return apperrors.NewInvalidInput("operation %q is already terminal (%s)", id, op.State)
	}
	if patch.State != nil {
		op.State = *patch.State
	}
	if patch.EndTime != nil {
		op.EndTime = patch.EndTime
	}
	if patch.TotalRecords != nil {
		op.TotalRecords = *patch.TotalRecords
	}
	if patch.RecordsProcessed != nil {
		op.RecordsProcessed = *patch.RecordsProcessed
	}
	if patch.RecordsSucceeded != nil {
		op.RecordsSucceeded = *patch.RecordsSucceeded
	}
	if patch.RecordsFailed != nil {
		op.RecordsFailed = *patch.RecordsFailed
	}
	if patch.ErrorMessage != nil {
		op.ErrorMessage = *patch.ErrorMessage
	}
	if patch.DurationSeconds != nil {
		op.DurationSeconds = *patch.DurationSeconds
	}
	if patch.AvgRecordMs != nil {
		op.AvgRecordMs = *patch.AvgRecordMs
	}
	op.ExecutionLogs = append(op.ExecutionLogs, patch.NewLogs...)

	data, err := json.Marshal(op)
	if err != nil {
		return apperrors.NewInternal("encode sync operation: %v", err)
	}
	return s.exec(ctx, `UPDATE sync_operations SET state = ?, data = ? WHERE id = ?`, string(op.State), data, id)
}

func (s *SQLStore) GetOperation(ctx context.Context, id string) (*types.SyncOperation, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sync_operations WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("sync operation %q", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "get sync operation %q", id)
	}
	var op types.SyncOperation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, apperrors.NewInternal("decode sync operation %q: %v", id, err)
	}
	return &op, nil
}

func (s *SQLStore) ListOperations(ctx context.Context, filter OperationFilter, page Page) ([]*types.SyncOperation, error) {
	page = page.Normalize()
	query := `SELECT data FROM sync_operations WHERE 1=1`
	var args []any
	if filter.SyncPairID != "" {
		query += ` AND sync_pair_id = ?`
		args = append(args, filter.SyncPairID)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY start_time DESC LIMIT ? OFFSET ?`
	args = append(args, page.PerPage, (page.Page-1)*page.PerPage)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "list sync operations")
	}
	defer rows.Close()

	var out []*types.SyncOperation
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Wrap(err, "scan sync operation")
		}
		var op types.SyncOperation
		if err := json.Unmarshal(data, &op); err != nil {
			return nil, apperrors.NewInternal("decode sync operation: %v", err)
		}
		out = append(out, &op)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteOperationsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_operations WHERE start_time < ? AND state IN ('completed','failed','canceled')`, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "delete operations before cutoff")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLStore) PutRecord(ctx context.Context, rec *types.SyncRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return apperrors.NewInternal("encode sync record: %v", err)
	}
	return s.exec(ctx, `INSERT INTO sync_records (id, operation_id, data) VALUES (?, ?, ?)`, rec.ID, rec.OperationID, data)
}

func (s *SQLStore) ListRecords(ctx context.Context, operationID string, page Page) ([]*types.SyncRecord, error) {
	page = page.Normalize()
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM sync_records WHERE operation_id = ? LIMIT ? OFFSET ?`,
		operationID, page.PerPage, (page.Page-1)*page.PerPage)
	if err != nil {
		return nil, apperrors.Wrap(err, "list sync records")
	}
	defer rows.Close()

	var out []*types.SyncRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Wrap(err, "scan sync record")
		}
		var rec types.SyncRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, apperrors.NewInternal("decode sync record: %v", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteRecordsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE r FROM sync_records r JOIN sync_operations o ON o.id = r.operation_id
		 WHERE o.state IN ('completed','failed','canceled') AND JSON_EXTRACT(o.data, '$.end_time') < ?`, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "delete records before cutoff")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLStore) CreateExport(ctx context.Context, job *types.GisExport) error {
	data, err := json.Marshal(job)
	if err != nil {
		return apperrors.NewInternal("encode export: %v", err)
	}
	if err := s.exec(ctx, `INSERT INTO gis_exports (id, county_id, state, data) VALUES (?, ?, ?, ?)`,
		job.ID, job.CountyID, string(job.State), data); err != nil {
		return apperrors.NewConflict("export %q already exists: %v", job.ID, err)
	}
	return nil
}

func (s *SQLStore) UpdateExportStatus(ctx context.Context, id string, patch ExportPatch) error {
	job, err := s.GetExport(ctx, id)
	if err != nil {
		return err
	}
	if job.State.Terminal() && patch.State != nil && *patch.State != job.State {
		return apperrors.NewInvalidInput("export %q is already terminal (%s)", id, job.State)
	}
	if patch.State != nil {
		job.State = *patch.State
	}
	if patch.ProgressPercent != nil {
		job.ProgressPercent = *patch.ProgressPercent
	}
	if patch.ResultURL != nil {
		job.ResultURL = *patch.ResultURL
	}
	if patch.FileSizeBytes != nil {
		job.FileSizeBytes = *patch.FileSizeBytes
	}
	if patch.ErrorMessage != nil {
		job.ErrorMessage = *patch.ErrorMessage
	}

	data, err := json.Marshal(job)
	if err != nil {
		return apperrors.NewInternal("encode export: %v", err)
	}
	return s.exec(ctx, `UPDATE gis_exports SET state = ?, data = ? WHERE id = ?`, string(job.State), data, id)
}

func (s *SQLStore) GetExport(ctx context.Context, id string) (*types.GisExport, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM gis_exports WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("export %q", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "get export %q", id)
	}
	var job types.GisExport
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, apperrors.NewInternal("decode export %q: %v", id, err)
	}
	return &job, nil
}

func (s *SQLStore) ListExports(ctx context.Context, filter ExportFilter, page Page) ([]*types.GisExport, error) {
	page = page.Normalize()
	query := `SELECT data FROM gis_exports WHERE 1=1`
	var args []any
	if filter.CountyID != "" {
		query += ` AND county_id = ?`
		args = append(args, filter.CountyID)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, page.PerPage, (page.Page-1)*page.PerPage)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "list exports")
	}
	defer rows.Close()

	var out []*types.GisExport
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Wrap(err, "scan export")
		}
		var job types.GisExport
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, apperrors.NewInternal("decode export: %v", err)
		}
		out = append(out, &job)
	}
	return out, rows.Err()
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error { return s.db.Close() }

var _ Store = (*SQLStore)(nil)
var _ Store = (*MemStore)(nil)
