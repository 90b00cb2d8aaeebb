// Package postgres backs the store.Store collaborator with Postgres,
// grounded on the teacher's internal/repository/postgres/{connection,
// transaction}.go: a pgxpool.Pool created once at startup, JSONB columns
// for the snapshot and operation payloads, and an ExecTx-style helper for
// the append path's atomicity requirement (spec §6.3 "each call is atomic
// from the orchestrator's perspective").
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
	"github.com/zcancio/aide-sub002/internal/store"
)

// Tables holds the (possibly environment-prefixed) table names this store
// reads and writes, following the teacher's TableNames pattern.
type Tables struct {
	Aides string // snapshot + awaiting-clarify flag, one row per aide
	Turns string // append-only operation log, one row per turn
}

// NewTables returns table names for the given environment prefix
// ("dev_", "test_", "prod_"), matching the teacher's NewTableNames.
func NewTables(prefix string) Tables {
	return Tables{
		Aides: prefix + "aides",
		Turns: prefix + "aide_turns",
	}
}

// Store is the Postgres-backed store.Store implementation.
type Store struct {
	pool   *pgxpool.Pool
	tables Tables
}

func New(pool *pgxpool.Pool, tables Tables) *Store {
	return &Store{pool: pool, tables: tables}
}

// Connect opens a pool exactly as the teacher's CreateConnectionPool does,
// including the PgBouncer-compatible query-exec-mode auto-detection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse connection string: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MinConns = 5
	if cfg.ConnConfig.Port == 6543 && cfg.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return pool, nil
}

func (s *Store) LoadTurnContext(ctx context.Context, aideID string) (*store.TurnContext, error) {
	var snapJSON []byte
	var awaiting bool
	q := fmt.Sprintf(`SELECT snapshot, awaiting_clarify FROM %s WHERE id = $1`, s.tables.Aides)
	err := s.pool.QueryRow(ctx, q, aideID).Scan(&snapJSON, &awaiting)
	if err == pgx.ErrNoRows {
		return &store.TurnContext{Snapshot: snapshot.New()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load snapshot: %w", err)
	}
	snap, err := snapshot.Parse(snapJSON)
	if err != nil {
		return nil, fmt.Errorf("store: parse snapshot: %w", err)
	}

	tail, err := s.loadConversationTail(ctx, aideID)
	if err != nil {
		return nil, err
	}

	return &store.TurnContext{Snapshot: snap, ConversationTail: tail, AwaitingClarify: awaiting}, nil
}

func (s *Store) loadConversationTail(ctx context.Context, aideID string) ([]store.HistoryEntry, error) {
	q := fmt.Sprintf(`SELECT role, summary, created_at FROM %s WHERE aide_id = $1 ORDER BY created_at DESC LIMIT 9`, s.tables.Turns)
	rows, err := s.pool.Query(ctx, q, aideID)
	if err != nil {
		return nil, fmt.Errorf("store: load conversation tail: %w", err)
	}
	defer rows.Close()

	var tail []store.HistoryEntry
	for rows.Next() {
		var e store.HistoryEntry
		var role string
		if err := rows.Scan(&role, &e.Text, &e.At); err != nil {
			return nil, fmt.Errorf("store: scan tail row: %w", err)
		}
		e.Role = store.HistoryRole(role)
		tail = append(tail, e)
	}
	// rows came back newest-first; the caller wants oldest-first.
	for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
		tail[i], tail[j] = tail[j], tail[i]
	}
	return tail, rows.Err()
}

func (s *Store) AppendTurn(ctx context.Context, aideID, turnID string, operations []reducer.Operation, final *snapshot.Snapshot) error {
	return s.execTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.persistTurn(ctx, tx, aideID, turnID, "assistant", operations, final)
	})
}

func (s *Store) AppendDirectEdit(ctx context.Context, aideID string, op reducer.Operation, result *snapshot.Snapshot) error {
	return s.execTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.persistTurn(ctx, tx, aideID, "", "direct_edit", []reducer.Operation{op}, result)
	})
}

func (s *Store) persistTurn(ctx context.Context, tx pgx.Tx, aideID, turnID, role string, operations []reducer.Operation, final *snapshot.Snapshot) error {
	opsJSON, err := json.Marshal(operations)
	if err != nil {
		return fmt.Errorf("store: encode operations: %w", err)
	}
	snapJSON, err := final.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}

	insertTurn := fmt.Sprintf(`INSERT INTO %s (id, aide_id, role, summary, operations, created_at)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, now())`, s.tables.Turns)
	summary := fmt.Sprintf("%d operations applied", len(operations))
	if _, err := tx.Exec(ctx, insertTurn, turnID, aideID, role, summary, opsJSON); err != nil {
		return fmt.Errorf("store: insert turn: %w", err)
	}

	upsertAide := fmt.Sprintf(`INSERT INTO %s (id, snapshot, awaiting_clarify, updated_at)
		VALUES ($1, $2, false, now())
		ON CONFLICT (id) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()`, s.tables.Aides)
	if _, err := tx.Exec(ctx, upsertAide, aideID, snapJSON); err != nil {
		return fmt.Errorf("store: upsert aide snapshot: %w", err)
	}
	return nil
}

func (s *Store) execTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}
