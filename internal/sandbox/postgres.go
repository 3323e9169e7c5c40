package sandbox

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/spigell/interview-runner/internal/interview"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const pingTimeout = 5 * time.Second

var openDB = sql.Open

// Connect opens a pgx-backed pool and checks it is reachable.
func Connect(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(2 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// PGStore keeps each interview as one JSONB document.
type PGStore struct {
	DB *sql.DB
}

func (s *PGStore) Create(ctx context.Context, iv *interview.Interview) error {
	doc, err := json.Marshal(iv)
	if err != nil {
		return fmt.Errorf("encode interview: %w", err)
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO ai_interviews (id, status, document) VALUES ($1, $2, $3)`,
		iv.ID, iv.Status.String(), doc,
	)
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*interview.Interview, error) {
	var doc []byte
	err := s.DB.QueryRowContext(ctx, `SELECT document FROM ai_interviews WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select interview: %w", err)
	}
	return decode(doc)
}

func (s *PGStore) Update(ctx context.Context, id string, fn func(iv *interview.Interview) error) (*interview.Interview, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var doc []byte
	err = tx.QueryRowContext(ctx, `SELECT document FROM ai_interviews WHERE id = $1 FOR UPDATE`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select interview: %w", err)
	}

	iv, err := decode(doc)
	if err != nil {
		return nil, err
	}
	if err := fn(iv); err != nil {
		return nil, err
	}

	updated, err := json.Marshal(iv)
	if err != nil {
		return nil, fmt.Errorf("encode interview: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE ai_interviews SET status = $2, document = $3, updated_at = now() WHERE id = $1`,
		id, iv.Status.String(), updated,
	); err != nil {
		return nil, fmt.Errorf("update interview: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return iv, nil
}
