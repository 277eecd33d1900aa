package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matheusmosca/commerce-settlement/internal/config"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

// querier é o subconjunto comum entre *pgxpool.Pool e pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool é o subconjunto de *pgxpool.Pool usado pelos repositórios
type Pool interface {
	querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// txConn é o subconjunto de pgx.Tx usado pelos repositórios
type txConn interface {
	querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB implementa repository.TxManager sobre um pool pgx
type DB struct {
	pool Pool
}

// NewDB cria uma nova instância de DB
func NewDB(pool Pool) *DB {
	return &DB{pool: pool}
}

// Connect abre o pool e espera o banco ficar pronto
func Connect(ctx context.Context, cfg config.Database) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	for i := 0; i < cfg.ConnectAttempts; i++ {
		if err := pool.Ping(ctx); err == nil {
			log.Printf("✅ Connected to %s database with connection pool", cfg.Name)
			return pool, nil
		}
		log.Printf("⏳ Waiting for database... (%d/%d)", i+1, cfg.ConnectAttempts)
		time.Sleep(1 * time.Second)
	}

	pool.Close()
	return nil, fmt.Errorf("failed to connect to database after %d attempts", cfg.ConnectAttempts)
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx txConn
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(context.Background())
}

func (t *PostgresTx) Rollback() error {
	err := t.tx.Rollback(context.Background())
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// BeginTx inicia uma nova transação read committed
func (db *DB) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	return &PostgresTx{tx: tx}, nil
}

// q devolve a transação quando houver, senão o pool
func (db *DB) q(tx repository.Tx) querier {
	if tx == nil {
		return db.pool
	}
	return tx.(*PostgresTx).tx
}

var _ repository.TxManager = (*DB)(nil)

var _ Pool = (*pgxpool.Pool)(nil)
