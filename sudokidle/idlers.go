package sudokidle

import (
	"context"
)

// IdlerProgress is the stored state of one idler. LastUpdateTime is epoch milliseconds and marks
// how far production has been credited.
type IdlerProgress struct {
	IdlerId        string `json:"idler_id"`
	Level          int    `json:"level"`
	LastUpdateTime int64  `json:"last_update_time"`
}

// IdlerPreview is a read-only view of an idler's pending production, for progress display.
type IdlerPreview struct {
	IdlerId          string  `json:"idler_id"`
	Level            int     `json:"level"`
	MaxLevel         int     `json:"max_level"`
	PendingCycles    int64   `json:"pending_cycles"`
	PendingSudokus   int64   `json:"pending_sudokus"`
	CycleProgress    float64 `json:"cycle_progress"`
	NextUpgradeCost  int64   `json:"next_upgrade_cost,omitempty"`
	SudokusPerMinute float64 `json:"sudokus_per_minute"`
}

// Ledger is the balance that idle production credits and upgrades debit.
type Ledger interface {
	HighestLevel() int
	AvailableSudokus() int64
	AddSudokus(ctx context.Context, amount int64)
	SpendSudokus(ctx context.Context, amount int64)
}

// The IdlersSystem computes time-based production for each unlocked idler and handles upgrades.
// Production is computed on demand from each idler's last update time; nothing runs in the
// background.
type IdlersSystem interface {
	System

	// Load reads the stored idler records.
	Load(ctx context.Context) error

	// UnlockedIdlers returns the ids of idlers whose unlock level has been reached, in config order.
	UnlockedIdlers() []string

	// Activate creates the record of an unlocked idler at level 1 if it has none.
	Activate(ctx context.Context, idlerID string) Result

	// CalculateProduction credits the whole cycles completed since the idler's last update and
	// returns the sudokus produced.
	CalculateProduction(ctx context.Context, idlerID string) int64

	// CalculateAll runs CalculateProduction for every known idler and returns the total produced.
	CalculateAll(ctx context.Context) int64

	// Preview reports pending production without crediting it.
	Preview(idlerID string) *IdlerPreview

	// Upgrade buys the next level of an idler.
	Upgrade(ctx context.Context, idlerID string) Result

	// Checkpoint stamps every known idler with the current time and persists it, crediting nothing.
	Checkpoint(ctx context.Context)

	// Get returns a copy of the idler record, or nil when it has none.
	Get(idlerID string) *IdlerProgress

	// List returns copies of all idler records.
	List() map[string]*IdlerProgress

	// Reset clears every idler record and returns any storage error.
	Reset(ctx context.Context) error
}
