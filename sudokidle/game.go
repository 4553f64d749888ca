package sudokidle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Game is one player's engine instance: the progression systems, the current puzzle and the
// timers driving autofill and idle polling. All methods are safe for concurrent use; each runs
// to completion under the game lock and publishes the events it raised after unlocking.
type Game struct {
	eventQueue

	mu         sync.Mutex
	config     *Config
	store      Store
	logger     runtime.Logger
	userID     string
	clock      Clock
	scheduler  Scheduler
	boards     BoardProvider
	rng        *rand.Rand
	publishers []Publisher

	player    *PlayerProgression
	abilities *AbilityGate
	idlers    *IdleProduction
	settings  *Settings
	session   *Session

	autofill       *Countdown
	idlePollCancel func()
	idlePolling    bool
	foreground     bool
	loaded         bool
	autofillFilled int
}

// AutofillState reports the autofill countdown.
type AutofillState struct {
	Running   bool `json:"running"`
	Remaining int  `json:"remaining"`
	Filled    int  `json:"filled"`
}

// GameState is a snapshot of everything a client displays.
type GameState struct {
	Player         *PlayerProgress           `json:"player"`
	Abilities      map[string]*AbilityUnlock `json:"abilities"`
	Idlers         map[string]*IdlerProgress `json:"idlers"`
	IdlerPreviews  map[string]*IdlerPreview  `json:"idler_previews"`
	UnlockedIdlers []string                  `json:"unlocked_idlers"`
	Settings       *Settings                 `json:"settings"`
	Board          *BoardState               `json:"board,omitempty"`
	Autofill       AutofillState             `json:"autofill"`
	Foreground     bool                      `json:"foreground"`
	LastSavedAt    int64                     `json:"last_saved_at,omitempty"`
}

// CellResult is the outcome of a cell edit.
type CellResult struct {
	Result
	Mistake  bool `json:"mistake"`
	LifeLost bool `json:"life_lost"`
}

// SubmitResult is the outcome of submitting a filled board.
type SubmitResult struct {
	Result
	Completed bool     `json:"completed"`
	Mistake   bool     `json:"mistake"`
	LifeLost  bool     `json:"life_lost"`
	Unlocked  []string `json:"unlocked,omitempty"`
}

// NewGame creates a game over store. Load must be called before play.
func NewGame(config *Config, store Store, logger runtime.Logger, userID string) *Game {
	clock := Clock(RealClock{})
	g := &Game{
		config:   config,
		store:    store,
		logger:   logger,
		userID:   userID,
		clock:    clock,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		settings: DefaultSettings(),
	}
	g.player = NewPlayerProgression(config, store, logger)
	g.abilities = NewAbilityGate(config, store, logger)
	g.idlers = NewIdleProduction(config, store, logger, g.player, clock)

	if boards, err := config.BoardList(); err == nil && len(boards) > 0 {
		g.boards = NewStaticBoardProvider(boards, nil)
	}
	return g
}

// SetClock replaces the time source used for idle production.
func (g *Game) SetClock(clock Clock) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clock = clock
	g.idlers.SetClock(clock)
}

// SetScheduler sets the scheduler that drives the autofill countdown and idle polling.
func (g *Game) SetScheduler(scheduler Scheduler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.autofill != nil {
		g.autofill.Stop()
	}
	g.scheduler = scheduler
	interval := time.Duration(g.config.Autofill.TickIntervalSec) * time.Second
	var countdown *Countdown
	countdown = NewCountdown(scheduler, g.config.Autofill.CountdownTicks, interval, func(gen uint64) {
		g.autofillFire(countdown, gen)
	})
	g.autofill = countdown
}

func (g *Game) SetBoardProvider(boards BoardProvider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.boards = boards
}

func (g *Game) SetRand(rng *rand.Rand) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng = rng
}

func (g *Game) AddPublisher(publisher Publisher) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.publishers = append(g.publishers, publisher)
}

// withLock runs fn under the game lock, then publishes the events raised while it ran.
func withLock[T any](ctx context.Context, g *Game, fn func() T) T {
	g.mu.Lock()
	result := fn()
	events := g.drainAll()
	publishers := g.publishers
	g.mu.Unlock()

	if len(events) > 0 {
		for _, p := range publishers {
			p.Send(ctx, g.logger, g.userID, events)
		}
	}
	return result
}

func (g *Game) drainAll() []*Event {
	var events []*Event
	events = append(events, g.player.DrainEvents()...)
	events = append(events, g.abilities.DrainEvents()...)
	events = append(events, g.idlers.DrainEvents()...)
	events = append(events, g.DrainEvents()...)

	now := g.clock.Now().Unix()
	for _, e := range events {
		e.Timestamp = now
	}
	return events
}

// Load reads all stored records, applies unlocks, catches up idle production and starts a puzzle.
// Storage read failures are returned.
func (g *Game) Load(ctx context.Context) error {
	return withLock(ctx, g, func() error {
		if err := g.player.Load(ctx); err != nil {
			return err
		}
		if err := g.abilities.Load(ctx); err != nil {
			return err
		}
		if err := g.idlers.Load(ctx); err != nil {
			return err
		}

		settings, err := g.store.LoadSettings(ctx)
		if err != nil {
			g.logger.Error("Failed to load settings: %v", err)
			return err
		}
		if settings == nil {
			settings = DefaultSettings()
			g.saveSettings(ctx, settings)
		}
		g.settings = settings

		g.loaded = true
		g.foreground = true
		g.abilities.CheckUnlocks(ctx, g.player.HighestLevel())
		g.activateIdlers(ctx)
		g.collectLocked(ctx)

		if g.session == nil && g.boards != nil {
			if err := g.loadNewBoardLocked(ctx, g.config.DefaultDifficulty); err != nil {
				g.logger.Warn("Failed to load initial board: %v", err)
			}
		}
		g.syncAutofill(false)
		return nil
	})
}

func (g *Game) State() *GameState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

func (g *Game) stateLocked() *GameState {
	state := &GameState{
		Player:         g.player.Get(),
		Abilities:      g.abilities.List(),
		Idlers:         g.idlers.List(),
		IdlerPreviews:  make(map[string]*IdlerPreview),
		UnlockedIdlers: g.idlers.UnlockedIdlers(),
		Foreground:     g.foreground,
	}
	settings := *g.settings
	state.Settings = &settings
	for id := range state.Idlers {
		if preview := g.idlers.Preview(id); preview != nil {
			state.IdlerPreviews[id] = preview
		}
	}
	if g.session != nil {
		state.Board = g.session.State()
	}
	if g.autofill != nil {
		state.Autofill = AutofillState{
			Running:   g.autofill.Running(),
			Remaining: g.autofill.Remaining(),
			Filled:    g.autofillFilled,
		}
	}
	if reporter, ok := g.store.(SaveTimeReporter); ok {
		if saved := reporter.LastSaved(); !saved.IsZero() {
			state.LastSavedAt = saved.UnixMilli()
		}
	}
	return state
}

// NewBoard discards the current puzzle and starts one of the given difficulty.
func (g *Game) NewBoard(ctx context.Context, difficulty Difficulty) error {
	return withLock(ctx, g, func() error {
		return g.loadNewBoardLocked(ctx, difficulty)
	})
}

// loadNewBoardLocked starts a new puzzle, restores the per-board use budgets and restarts the
// autofill countdown.
func (g *Game) loadNewBoardLocked(ctx context.Context, difficulty Difficulty) error {
	if g.boards == nil {
		return ErrNoBoards
	}
	if difficulty == "" {
		difficulty = g.config.DefaultDifficulty
	}
	board, err := g.boards.RandomBoard(difficulty)
	if err != nil {
		return err
	}

	g.session = NewSession(board)
	g.abilities.RefillUses(ctx, RefillNewBoard)
	g.syncAutofill(true)
	return nil
}

// ResetBoard restores the current puzzle to its givens.
func (g *Game) ResetBoard(ctx context.Context) Result {
	return withLock(ctx, g, func() Result {
		if g.session == nil {
			return Rejected(ReasonNoBoard)
		}
		g.session.Reset()
		g.syncAutofill(true)
		return Ok
	})
}

// SetCell writes value into an editable cell. A digit that repeats in its row, column or box is
// a mistake.
func (g *Game) SetCell(ctx context.Context, row, col, value int) CellResult {
	return withLock(ctx, g, func() CellResult {
		if g.session == nil {
			return CellResult{Result: Rejected(ReasonNoBoard)}
		}
		if result := g.session.Set(row, col, value); !result.OK() {
			return CellResult{Result: result}
		}

		grid := g.session.Grid()
		if value == 0 || IsCellValid(&grid, row, col) {
			return CellResult{Result: Ok}
		}
		lifeLost := g.player.AddMistake(ctx)
		return CellResult{Result: Ok, Mistake: true, LifeLost: lifeLost}
	})
}

// SubmitBoard checks a filled board. A valid board completes the puzzle and starts a new one of
// the default difficulty. An invalid board is accepted as a mistake and the puzzle stays open.
func (g *Game) SubmitBoard(ctx context.Context) (SubmitResult, error) {
	var loadErr error
	result := withLock(ctx, g, func() SubmitResult {
		if g.session == nil {
			return SubmitResult{Result: Rejected(ReasonNoBoard)}
		}
		grid := g.session.Grid()
		if !grid.Full() {
			return SubmitResult{Result: Rejected(ReasonBoardIncomplete)}
		}
		if !IsValidSudoku(&grid) {
			lifeLost := g.player.AddMistake(ctx)
			return SubmitResult{Result: Ok, Mistake: true, LifeLost: lifeLost}
		}

		g.player.CompleteSudoku(ctx, g.session.Board().Difficulty)
		unlocked := g.abilities.CheckUnlocks(ctx, g.player.HighestLevel())
		g.abilities.RefillUses(ctx, RefillCompletion)
		g.activateIdlers(ctx)
		loadErr = g.loadNewBoardLocked(ctx, g.config.DefaultDifficulty)
		return SubmitResult{Result: Ok, Completed: true, Unlocked: unlocked}
	})
	return result, loadErr
}

// UseAbility invokes a player-triggered ability. index selects the row, column or box for the
// fill abilities and is ignored otherwise. Abilities without a player action return
// ErrUnknownAbility.
func (g *Game) UseAbility(ctx context.Context, abilityID string, index int) (Result, error) {
	var useErr error
	result := withLock(ctx, g, func() Result {
		switch abilityID {
		case AbilityHintV1, AbilityHintV2, AbilityFillRow, AbilityFillColumn, AbilityFillQuadrant, AbilityNewSudoku:
		default:
			useErr = ErrUnknownAbility
			return Rejected(ReasonUnknownID)
		}

		if result := g.abilities.Check(abilityID); !result.OK() {
			return result
		}
		if g.session == nil {
			return Rejected(ReasonNoBoard)
		}

		var result Result
		switch abilityID {
		case AbilityHintV1:
			result = g.session.HintV1(g.rng)
		case AbilityHintV2:
			_, result = g.session.FillRandomCell(g.rng)
		case AbilityFillRow:
			result = g.session.FillRow(index)
		case AbilityFillColumn:
			result = g.session.FillColumn(index)
		case AbilityFillQuadrant:
			result = g.session.FillQuadrant(index)
		case AbilityNewSudoku:
			g.abilities.Use(ctx, abilityID)
			useErr = g.loadNewBoardLocked(ctx, g.session.Board().Difficulty)
			return Ok
		}
		if !result.OK() {
			return result
		}
		return g.abilities.Use(ctx, abilityID)
	})
	return result, useErr
}

// CheckAnswers lists filled cells that disagree with the solution. It needs the checkAnswers
// ability unlocked and the setting enabled.
func (g *Game) CheckAnswers() ([]CellCoord, Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.abilities.IsUnlocked(AbilityCheckAnswers) {
		return nil, Rejected(ReasonLocked)
	}
	if !g.settings.CheckAnswersEnabled {
		return nil, Rejected(ReasonDisabled)
	}
	if g.session == nil {
		return nil, Rejected(ReasonNoBoard)
	}
	return g.session.WrongCells(), Ok
}

// UpgradeIdler buys the next level of an idler.
func (g *Game) UpgradeIdler(ctx context.Context, idlerID string) Result {
	return withLock(ctx, g, func() Result {
		return g.idlers.Upgrade(ctx, idlerID)
	})
}

// CollectIdleProduction credits every idler's completed cycles and returns the total produced.
func (g *Game) CollectIdleProduction(ctx context.Context) int64 {
	return withLock(ctx, g, func() int64 {
		return g.collectLocked(ctx)
	})
}

func (g *Game) collectLocked(ctx context.Context) int64 {
	produced := g.idlers.CalculateAll(ctx)
	if produced > 0 {
		// Credits can raise the highest level, so unlocks are re-evaluated here
		g.abilities.CheckUnlocks(ctx, g.player.HighestLevel())
		g.activateIdlers(ctx)
		g.syncAutofill(false)
	}
	return produced
}

// activateIdlers creates records for idlers that have just become unlocked.
func (g *Game) activateIdlers(ctx context.Context) {
	for _, id := range g.idlers.UnlockedIdlers() {
		g.idlers.Activate(ctx, id)
	}
}

// UpdateSettings applies and persists a settings change, then starts or stops autofill to match.
func (g *Game) UpdateSettings(ctx context.Context, update *SettingsUpdate) *Settings {
	return withLock(ctx, g, func() *Settings {
		g.settings.Apply(update)
		g.saveSettings(ctx, g.settings)
		g.syncAutofill(false)
		settings := *g.settings
		return &settings
	})
}

func (g *Game) saveSettings(ctx context.Context, settings *Settings) {
	if err := g.store.SaveSettings(ctx, settings); err != nil {
		g.logger.Error("Failed to save settings: %v", err)
	}
}

// StartIdlePolling collects idle production on the configured cadence until stopped. Polling
// pauses while the game is in the background.
func (g *Game) StartIdlePolling() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idlePolling = true
	if g.foreground {
		g.startIdlePollingLocked()
	}
}

func (g *Game) StopIdlePolling() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idlePolling = false
	g.stopIdlePollingLocked()
}

func (g *Game) startIdlePollingLocked() {
	if g.scheduler == nil {
		return
	}
	g.stopIdlePollingLocked()
	interval := time.Duration(g.config.IdlePollIntervalSec) * time.Second
	g.idlePollCancel = g.scheduler.Every(interval, func() {
		g.CollectIdleProduction(context.Background())
	})
}

func (g *Game) stopIdlePollingLocked() {
	if g.idlePollCancel != nil {
		g.idlePollCancel()
		g.idlePollCancel = nil
	}
}

// autofillActive reports whether the autofill countdown should be running.
func (g *Game) autofillActive() bool {
	return g.loaded &&
		g.foreground &&
		g.autofill != nil &&
		g.session != nil &&
		g.settings.AutofillEnabled &&
		g.abilities.IsUnlocked(AbilityAutofill)
}

// syncAutofill stops the countdown when autofill is inactive. When active it starts a stopped
// countdown, or restarts a running one if restart is set.
func (g *Game) syncAutofill(restart bool) {
	if g.autofill == nil {
		return
	}
	if !g.autofillActive() {
		g.autofill.Stop()
		return
	}
	if restart || !g.autofill.Running() {
		g.autofill.Start()
	}
}

// autofillFire fills one empty cell when countdown run gen reaches zero.
func (g *Game) autofillFire(countdown *Countdown, gen uint64) {
	ctx := context.Background()
	withLock(ctx, g, func() struct{} {
		if countdown != g.autofill || !countdown.Current(gen) || !g.autofillActive() || !g.abilities.CanUse(AbilityAutofill) {
			return struct{}{}
		}
		if _, result := g.session.FillRandomCell(g.rng); result.OK() {
			g.abilities.Use(ctx, AbilityAutofill)
			g.autofillFilled++
		}
		return struct{}{}
	})
}

// ResetGame restores first-run defaults for the player, abilities and idlers. Every component
// reset is attempted; storage failures are returned and nothing is rolled back.
func (g *Game) ResetGame(ctx context.Context) error {
	return withLock(ctx, g, func() error {
		var errs []error
		if err := g.player.Reset(ctx); err != nil {
			errs = append(errs, fmt.Errorf("reset player: %w", err))
		}
		if err := g.abilities.Reset(ctx); err != nil {
			errs = append(errs, fmt.Errorf("reset abilities: %w", err))
		}
		if err := g.idlers.Reset(ctx); err != nil {
			errs = append(errs, fmt.Errorf("reset idlers: %w", err))
		}

		g.abilities.CheckUnlocks(ctx, g.player.HighestLevel())
		g.activateIdlers(ctx)
		g.session = nil
		g.autofillFilled = 0
		if g.boards != nil {
			if err := g.loadNewBoardLocked(ctx, g.config.DefaultDifficulty); err != nil {
				g.logger.Warn("Failed to load board after reset: %v", err)
			}
		}
		g.syncAutofill(true)

		if len(errs) > 0 {
			return errors.Join(errs...)
		}
		g.emit(SystemTypeUnknown, EventGameReset, "", "", nil)
		return nil
	})
}

// Close stops all timers owned by the game.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopIdlePollingLocked()
	if g.autofill != nil {
		g.autofill.Stop()
	}
}
