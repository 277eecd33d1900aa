package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/matheusmosca/commerce-settlement/internal/config"
	"github.com/matheusmosca/commerce-settlement/migrations"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	applied, err := migrate(ctx, db, migrations.FS)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Printf("✅ Migrations up to date (%d applied)", applied)
}

func openDB(ctx context.Context, cfg config.Database) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	for i := 0; i < cfg.ConnectAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			log.Printf("✅ Connected to %s database", cfg.Name)
			return db, nil
		}
		log.Printf("⏳ Waiting for database... (%d/%d)", i+1, cfg.ConnectAttempts)
		time.Sleep(1 * time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("failed to connect to database after %d attempts", cfg.ConnectAttempts)
}

// migrate aplica, em ordem de nome, os arquivos .sql ainda não registrados
// em schema_migrations. Cada arquivo roda na sua própria transação.
func migrate(ctx context.Context, db *sql.DB, files fs.FS) (int, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return 0, err
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		var exists bool
		if err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name,
		).Scan(&exists); err != nil {
			return applied, err
		}
		if exists {
			log.Printf("ℹ️ [MIGRATE] %s already applied", name)
			continue
		}

		body, err := fs.ReadFile(files, name)
		if err != nil {
			return applied, err
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return applied, err
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("%s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("%s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, err
		}

		log.Printf("➡️ [MIGRATE] %s applied", name)
		applied++
	}
	return applied, nil
}
