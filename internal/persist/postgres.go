package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mzansipos/terminal/internal/domain"
)

// Postgres keeps the snapshot in a single-row jsonb table. Each terminal
// owns one row keyed by its terminal ID, so several tills can share one
// database without stepping on each other.
type Postgres struct {
	db         *sql.DB
	terminalID string
}

func NewPostgres(ctx context.Context, databaseURL string, terminalID string) (*Postgres, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS terminal_state (
			terminal_id TEXT PRIMARY KEY,
			state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Postgres{db: db, terminalID: terminalID}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Load(ctx context.Context) (*domain.AppState, bool, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT state FROM terminal_state WHERE terminal_id = $1
	`, p.terminalID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var state domain.AppState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, false, err
	}
	return &state, true, nil
}

func (p *Postgres) Save(ctx context.Context, state domain.AppState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO terminal_state (terminal_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (terminal_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = now()
	`, p.terminalID, payload)
	return err
}
