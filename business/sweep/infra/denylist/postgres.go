package denylist

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fd1az/token-sweeper/business/sweep/app"
)

var _ app.DenylistStore = (*PostgresStore)(nil)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS sweep_denylist (
	chain_id BIGINT NOT NULL,
	token    TEXT   NOT NULL,
	added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, token)
)`
	selectSQL = `SELECT token FROM sweep_denylist WHERE chain_id = $1 ORDER BY added_at, token`
	insertSQL = `INSERT INTO sweep_denylist (chain_id, token) VALUES ($1, $2) ON CONFLICT DO NOTHING`
)

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// PostgresStore keeps the denylist in a table keyed by chain.
type PostgresStore struct {
	db      DB
	chainID uint64
	pool    *pgxpool.Pool
}

// NewPostgresStore wraps db.
func NewPostgresStore(db DB, chainID uint64) *PostgresStore {
	return &PostgresStore{db: db, chainID: chainID}
}

// OpenPostgres connects a pool, checks it and creates the table. Close
// releases the pool.
func OpenPostgres(ctx context.Context, dsn string, chainID uint64) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect denylist database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping denylist database: %w", err)
	}

	store := NewPostgresStore(pool, chainID)
	store.pool = pool
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the pool opened by OpenPostgres.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Migrate creates the table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create denylist table: %w", err)
	}
	return nil
}

// Load returns the chain's entries in insertion order.
func (s *PostgresStore) Load(ctx context.Context) ([]common.Address, error) {
	rows, err := s.db.Query(ctx, selectSQL, int64(s.chainID))
	if err != nil {
		return nil, fmt.Errorf("query denylist: %w", err)
	}

	tokens, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan denylist: %w", err)
	}

	out := make([]common.Address, 0, len(tokens))
	for _, t := range tokens {
		if !common.IsHexAddress(t) {
			return nil, fmt.Errorf("scan denylist: invalid address %q", t)
		}
		out = append(out, common.HexToAddress(t))
	}
	return out, nil
}

// Append inserts token; an existing row is left untouched.
func (s *PostgresStore) Append(ctx context.Context, token common.Address) error {
	if _, err := s.db.Exec(ctx, insertSQL, int64(s.chainID), token.Hex()); err != nil {
		return fmt.Errorf("insert denylist entry: %w", err)
	}
	return nil
}
