// Package persist stores and restores the terminal's full state snapshot.
// Persistence is best-effort: a failed save is logged and the sale that
// triggered it stays committed in memory.
package persist

import (
	"context"
	"log"
	"time"

	"mzansipos/terminal/internal/domain"
)

// Persister loads and saves one opaque AppState snapshot. Load's second
// return is false when no snapshot exists yet.
type Persister interface {
	Load(ctx context.Context) (*domain.AppState, bool, error)
	Save(ctx context.Context, state domain.AppState) error
}

type Noop struct{}

func (Noop) Load(_ context.Context) (*domain.AppState, bool, error) { return nil, false, nil }

func (Noop) Save(_ context.Context, _ domain.AppState) error { return nil }

// Autosaver serializes snapshot writes onto one background goroutine.
// Enqueue never blocks the committing path; when saves fall behind, older
// pending snapshots are dropped in favor of the latest one.
type Autosaver struct {
	persister Persister
	pending   chan domain.AppState
	timeout   time.Duration
}

func NewAutosaver(p Persister) *Autosaver {
	return &Autosaver{
		persister: p,
		pending:   make(chan domain.AppState, 1),
		timeout:   5 * time.Second,
	}
}

// Enqueue schedules a snapshot for saving, replacing any not-yet-written one.
func (a *Autosaver) Enqueue(state domain.AppState) {
	for {
		select {
		case a.pending <- state:
			return
		default:
		}
		select {
		case <-a.pending:
		default:
		}
	}
}

// Run writes snapshots until ctx is cancelled, then flushes any pending one.
func (a *Autosaver) Run(ctx context.Context) {
	for {
		select {
		case state := <-a.pending:
			a.save(state)
		case <-ctx.Done():
			select {
			case state := <-a.pending:
				a.save(state)
			default:
			}
			return
		}
	}
}

func (a *Autosaver) save(state domain.AppState) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.persister.Save(ctx, state); err != nil {
		log.Printf("[persist] WARN: snapshot save failed: %v", err)
	}
}
