package sudokidle

import (
	"context"
	"strconv"

	"github.com/heroiclabs/nakama-common/runtime"
)

// PlayerProgression implements the PlayerSystem interface over a Store.
type PlayerProgression struct {
	eventQueue

	config   *Config
	store    Store
	logger   runtime.Logger
	progress *PlayerProgress
}

// NewPlayerProgression creates a player system holding first-run defaults until Load is called.
func NewPlayerProgression(config *Config, store Store, logger runtime.Logger) *PlayerProgression {
	return &PlayerProgression{
		config:   config,
		store:    store,
		logger:   logger,
		progress: NewPlayerProgress(),
	}
}

func (p *PlayerProgression) GetType() SystemType {
	return SystemTypePlayer
}

func (p *PlayerProgression) GetConfig() any {
	return p.config
}

func (p *PlayerProgression) Load(ctx context.Context) error {
	stored, err := p.store.LoadPlayer(ctx)
	if err != nil {
		p.logger.Error("Failed to load player: %v", err)
		return err
	}

	if stored == nil {
		// First run, persist the defaults
		p.progress = NewPlayerProgress()
	} else {
		p.progress = stored
		if p.progress.CompletedSudokus == nil {
			p.progress.CompletedSudokus = make(map[Difficulty]int64, len(Difficulties))
		}
		for _, d := range Difficulties {
			if _, found := p.progress.CompletedSudokus[d]; !found {
				p.progress.CompletedSudokus[d] = 0
			}
		}
		if p.progress.Level < 1 {
			p.progress.Level = 1
		}
		if p.progress.HighestLevel < 1 {
			p.progress.HighestLevel = 1
		}
	}

	p.recompute(ctx, false)
	return nil
}

func (p *PlayerProgression) Get() *PlayerProgress {
	return p.progress.Clone()
}

func (p *PlayerProgression) HighestLevel() int {
	return p.progress.HighestLevel
}

func (p *PlayerProgression) AvailableSudokus() int64 {
	return p.progress.AvailableSudokus
}

func (p *PlayerProgression) CompleteSudoku(ctx context.Context, difficulty Difficulty) {
	if !difficulty.Valid() {
		difficulty = p.config.DefaultDifficulty
	}

	p.progress.TotalCompletedSudokus++
	p.progress.CompletedSudokus[difficulty]++
	p.progress.AvailableSudokus++
	p.emit(SystemTypePlayer, EventSudokuCompleted, string(difficulty), strconv.FormatInt(p.progress.TotalCompletedSudokus, 10), nil)

	p.recompute(ctx, true)
	p.RestoreLife(ctx)
}

func (p *PlayerProgression) AddSudokus(ctx context.Context, amount int64) {
	if amount <= 0 {
		return
	}
	p.progress.AvailableSudokus += amount
	p.recompute(ctx, true)
}

func (p *PlayerProgression) SpendSudokus(ctx context.Context, amount int64) {
	if amount <= 0 {
		return
	}
	p.progress.AvailableSudokus -= amount
	if p.progress.AvailableSudokus < 0 {
		p.progress.AvailableSudokus = 0
	}
	p.recompute(ctx, true)
}

func (p *PlayerProgression) AddMistake(ctx context.Context) bool {
	p.progress.Mistakes++
	if p.progress.Mistakes > p.progress.CurrentLives {
		p.LoseLife(ctx)
		return true
	}
	p.save(ctx)
	return false
}

func (p *PlayerProgression) LoseLife(ctx context.Context) {
	if p.progress.CurrentLives > 0 {
		p.progress.CurrentLives--
	}
	// Losing a life costs one sudoku
	if p.progress.AvailableSudokus > 0 {
		p.progress.AvailableSudokus--
	}
	p.progress.Mistakes = 0
	p.emit(SystemTypePlayer, EventLifeLost, "", strconv.Itoa(p.progress.CurrentLives), nil)

	p.recompute(ctx, true)
}

func (p *PlayerProgression) RestoreLife(ctx context.Context) {
	if p.progress.CurrentLives < p.progress.MaxLives {
		p.progress.CurrentLives++
	}
	p.save(ctx)
}

func (p *PlayerProgression) ResetMistakes(ctx context.Context) {
	if p.progress.Mistakes == 0 {
		return
	}
	p.progress.Mistakes = 0
	p.save(ctx)
}

func (p *PlayerProgression) RecomputeDerived(ctx context.Context) {
	p.recompute(ctx, true)
}

// recompute applies the derived-field rules. The level computed from the balance only ever
// raises the stored level.
func (p *PlayerProgression) recompute(ctx context.Context, notify bool) {
	previous := p.progress.HighestLevel

	candidate := ComputeLevel(p.progress.AvailableSudokus, p.config.LevelRequirements)
	if candidate < p.progress.HighestLevel {
		candidate = p.progress.HighestLevel
	}
	if candidate > p.progress.Level {
		p.progress.Level = candidate
	}
	if p.progress.Level > p.progress.HighestLevel {
		p.progress.HighestLevel = p.progress.Level
	}

	p.progress.MaxLives = ComputeMaxLives(p.progress.HighestLevel)
	if p.progress.CurrentLives > p.progress.MaxLives {
		p.progress.CurrentLives = p.progress.MaxLives
	}
	if p.progress.CurrentLives < 0 {
		p.progress.CurrentLives = 0
	}

	if notify && p.progress.HighestLevel > previous {
		p.emit(SystemTypePlayer, EventLevelUp, "", strconv.Itoa(p.progress.HighestLevel), map[string]string{
			"previous": strconv.Itoa(previous),
		})
	}

	p.save(ctx)
}

func (p *PlayerProgression) Reset(ctx context.Context) error {
	p.progress = NewPlayerProgress()
	if err := p.store.SavePlayer(ctx, p.progress); err != nil {
		p.logger.Error("Failed to reset player: %v", err)
		return err
	}
	return nil
}

func (p *PlayerProgression) save(ctx context.Context) {
	if err := p.store.SavePlayer(ctx, p.progress); err != nil {
		p.logger.Error("Failed to save player: %v", err)
	}
}

var _ PlayerSystem = &PlayerProgression{}
