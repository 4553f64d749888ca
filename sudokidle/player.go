package sudokidle

import (
	"context"
)

// PlayerProgress is the per-installation progression record.
type PlayerProgress struct {
	Level                 int                  `json:"level"`
	HighestLevel          int                  `json:"highest_level"`
	TotalCompletedSudokus int64                `json:"total_completed_sudokus"`
	AvailableSudokus      int64                `json:"available_sudokus"`
	MaxLives              int                  `json:"max_lives"`
	CurrentLives          int                  `json:"current_lives"`
	Mistakes              int                  `json:"mistakes"`
	CompletedSudokus      map[Difficulty]int64 `json:"completed_sudokus"`
}

// NewPlayerProgress returns a first-run record: level 1, no sudokus and a single life.
func NewPlayerProgress() *PlayerProgress {
	completed := make(map[Difficulty]int64, len(Difficulties))
	for _, d := range Difficulties {
		completed[d] = 0
	}
	return &PlayerProgress{
		Level:            1,
		HighestLevel:     1,
		MaxLives:         1,
		CurrentLives:     1,
		CompletedSudokus: completed,
	}
}

func (p *PlayerProgress) Clone() *PlayerProgress {
	c := *p
	c.CompletedSudokus = make(map[Difficulty]int64, len(p.CompletedSudokus))
	for k, v := range p.CompletedSudokus {
		c.CompletedSudokus[k] = v
	}
	return &c
}

// The PlayerSystem owns level, sudokus, lives and mistakes, and recomputes the derived fields
// after every mutation. Mutations persist immediately; a failed save is logged and the in-memory
// record stays authoritative.
type PlayerSystem interface {
	System

	// Load reads the stored record, creating defaults on first run, and recomputes derived fields.
	Load(ctx context.Context) error

	// Get returns a snapshot of the current record.
	Get() *PlayerProgress

	// HighestLevel returns the highest level ever reached, used for all unlock checks.
	HighestLevel() int

	// AvailableSudokus returns the spendable balance.
	AvailableSudokus() int64

	// CompleteSudoku credits a completed puzzle of the given difficulty and restores one life.
	CompleteSudoku(ctx context.Context, difficulty Difficulty)

	// AddSudokus grants amount sudokus.
	AddSudokus(ctx context.Context, amount int64)

	// SpendSudokus debits amount sudokus, clamping the balance at zero.
	SpendSudokus(ctx context.Context, amount int64)

	// AddMistake records a board-edit mistake and reports whether it cost a life.
	AddMistake(ctx context.Context) (lifeLost bool)

	// LoseLife removes one life and one sudoku and clears the mistake counter.
	LoseLife(ctx context.Context)

	// RestoreLife grants one life up to the current cap.
	RestoreLife(ctx context.Context)

	// ResetMistakes clears the mistake counter.
	ResetMistakes(ctx context.Context)

	// RecomputeDerived raises the level and highest level from the balance, caps lives and persists.
	RecomputeDerived(ctx context.Context)

	// Reset restores first-run defaults and returns any storage error.
	Reset(ctx context.Context) error
}
