package sudokidle

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testGame struct {
	*Game
	store     *MemoryStore
	scheduler *manualScheduler
	clock     *FakeClock
	published *recordingPublisher
}

// newTestGame loads a game whose stored balance is sudokus.
func newTestGame(t *testing.T, sudokus int64) *testGame {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryStore()
	if sudokus > 0 {
		require.NoError(t, store.SavePlayer(ctx, &PlayerProgress{
			Level:            1,
			HighestLevel:     1,
			AvailableSudokus: sudokus,
			MaxLives:         1,
			CurrentLives:     1,
		}))
	}

	tg := &testGame{
		Game:      NewGame(testConfig(), store, &mockLogger{}, "user1"),
		store:     store,
		scheduler: newManualScheduler(),
		clock:     NewFakeClock(testEpoch),
		published: &recordingPublisher{},
	}
	tg.SetClock(tg.clock)
	tg.SetScheduler(tg.scheduler)
	tg.SetRand(rand.New(rand.NewSource(1)))
	tg.AddPublisher(tg.published)
	require.NoError(t, tg.Load(ctx))
	return tg
}

// solve fills every empty cell with its solution digit.
func (tg *testGame) solve(t *testing.T) {
	t.Helper()
	state := tg.State()
	require.NotNil(t, state.Board)
	solution := tg.session.Board().Solution
	for _, cell := range state.Board.Grid.EmptyCells() {
		result := tg.SetCell(context.Background(), cell.Row, cell.Col, solution[cell.Row][cell.Col])
		require.True(t, result.OK())
		require.False(t, result.Mistake)
	}
}

func (tg *testGame) wrongCells() []CellCoord {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	return tg.session.WrongCells()
}

func emptyCount(state *GameState) int {
	return len(state.Board.Grid.EmptyCells())
}

func TestGame_Load(t *testing.T) {
	tg := newTestGame(t, 0)

	state := tg.State()
	assert.Equal(t, 1, state.Player.Level)
	assert.True(t, state.Foreground)
	assert.Equal(t, []string{"pencil"}, state.UnlockedIdlers)
	assert.Contains(t, state.Idlers, "pencil")
	assert.Contains(t, state.IdlerPreviews, "pencil")
	assert.Len(t, state.Abilities, 2)
	assert.Equal(t, DefaultSettings(), state.Settings)
	require.NotNil(t, state.Board)
	assert.Equal(t, DifficultyEasy, state.Board.Difficulty)
	assert.Equal(t, 51, emptyCount(state))
	assert.False(t, state.Autofill.Running)
	// A memory store keeps no save times
	assert.Zero(t, state.LastSavedAt)

	settings, err := tg.store.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)

	assert.Contains(t, tg.published.Names(), EventAbilityUnlocked)
}

func TestGame_LoadCatchesUpIdleProduction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SaveIdler(ctx, &IdlerProgress{
		IdlerId:        "pencil",
		Level:          1,
		LastUpdateTime: testEpoch.Add(-time.Minute).UnixMilli(),
	}))

	game := NewGame(testConfig(), store, &mockLogger{}, "user1")
	game.SetClock(NewFakeClock(testEpoch))
	require.NoError(t, game.Load(ctx))

	assert.Equal(t, int64(6), game.State().Player.AvailableSudokus)
}

func TestGame_LoadFailure(t *testing.T) {
	store := NewMemoryStore()
	store.SetFailing(true)
	game := NewGame(testConfig(), store, &mockLogger{}, "user1")
	assert.ErrorIs(t, game.Load(context.Background()), ErrStoreUnavailable)
}

func TestGame_SetCell(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 0)

	assert.Equal(t, Rejected(ReasonFixedCell), tg.SetCell(ctx, 0, 0, 1).Result)
	assert.Equal(t, Rejected(ReasonOutOfRange), tg.SetCell(ctx, 0, 2, 12).Result)

	result := tg.SetCell(ctx, 0, 2, 4)
	assert.Equal(t, CellResult{Result: Ok}, result)

	// 5 repeats the given in the same row
	result = tg.SetCell(ctx, 0, 3, 5)
	assert.True(t, result.OK())
	assert.True(t, result.Mistake)
	assert.False(t, result.LifeLost)
	assert.Equal(t, 1, tg.State().Player.Mistakes)

	result = tg.SetCell(ctx, 0, 5, 5)
	assert.True(t, result.Mistake)
	assert.True(t, result.LifeLost)
	player := tg.State().Player
	assert.Equal(t, 0, player.CurrentLives)
	assert.Equal(t, 0, player.Mistakes)
	assert.Contains(t, tg.published.Names(), EventLifeLost)

	assert.Equal(t, CellResult{Result: Ok}, tg.SetCell(ctx, 0, 3, 0))
}

func TestGame_SubmitBoard(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 1)

	result, err := tg.SubmitBoard(ctx)
	require.NoError(t, err)
	assert.Equal(t, Rejected(ReasonBoardIncomplete), result.Result)

	_, useErr := tg.UseAbility(ctx, AbilityHintV1, 0)
	require.NoError(t, useErr)
	require.Equal(t, 2, tg.State().Abilities[AbilityHintV1].UsesRemaining.Remaining())

	tg.solve(t)
	require.True(t, tg.State().Board.Complete)

	result, err = tg.SubmitBoard(ctx)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.True(t, result.Completed)
	assert.Equal(t, []string{AbilityHintV2, AbilityFillRow, AbilityFillColumn, AbilityFillQuadrant}, result.Unlocked)

	state := tg.State()
	assert.Equal(t, int64(2), state.Player.AvailableSudokus)
	assert.Equal(t, int64(1), state.Player.CompletedSudokus[DifficultyEasy])
	assert.Equal(t, 2, state.Player.Level)
	// A fresh puzzle with a fresh use budget
	assert.Equal(t, 51, emptyCount(state))
	assert.Empty(t, state.Board.HintCells)
	assert.Equal(t, 3, state.Abilities[AbilityHintV1].UsesRemaining.Remaining())

	names := tg.published.Names()
	assert.Contains(t, names, EventSudokuCompleted)
	assert.Contains(t, names, EventLevelUp)
}

func TestGame_SubmitInvalidBoard(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 0)
	tg.solve(t)

	// Swap in a digit that repeats in its row
	require.True(t, tg.SetCell(ctx, 0, 2, 0).OK())
	require.True(t, tg.SetCell(ctx, 0, 2, 1).Mistake)

	result, err := tg.SubmitBoard(ctx)
	require.NoError(t, err)
	assert.Equal(t, Ok, result.Result)
	assert.True(t, result.Mistake)
	assert.False(t, result.Completed)
	assert.True(t, result.LifeLost)

	state := tg.State()
	assert.Equal(t, int64(0), state.Player.TotalCompletedSudokus)
	assert.Equal(t, 1, state.Board.Grid[0][2])
}

func TestGame_NoBoard(t *testing.T) {
	ctx := context.Background()
	config := testConfig()
	config.Boards = nil
	game := NewGame(config, NewMemoryStore(), &mockLogger{}, "user1")
	require.NoError(t, game.Load(ctx))

	assert.Nil(t, game.State().Board)
	assert.Equal(t, Rejected(ReasonNoBoard), game.SetCell(ctx, 0, 0, 1).Result)
	assert.Equal(t, Rejected(ReasonNoBoard), game.ResetBoard(ctx))
	result, err := game.SubmitBoard(ctx)
	require.NoError(t, err)
	assert.Equal(t, Rejected(ReasonNoBoard), result.Result)
	assert.ErrorIs(t, game.NewBoard(ctx, DifficultyEasy), ErrNoBoards)
}

func TestGame_UseAbility(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 0)

	result, err := tg.UseAbility(ctx, AbilityHintV1, 0)
	require.NoError(t, err)
	assert.Equal(t, Ok, result)
	assert.Len(t, tg.State().Board.HintCells, 3)

	result, err = tg.UseAbility(ctx, AbilityFillRow, 0)
	require.NoError(t, err)
	assert.Equal(t, Rejected(ReasonLocked), result)

	_, err = tg.UseAbility(ctx, AbilityAutofill, 0)
	assert.ErrorIs(t, err, ErrUnknownAbility)
	_, err = tg.UseAbility(ctx, AbilityCheckAnswers, 0)
	assert.ErrorIs(t, err, ErrUnknownAbility)

	for i := 0; i < 2; i++ {
		result, _ = tg.UseAbility(ctx, AbilityHintV1, 0)
		require.Equal(t, Ok, result)
	}
	result, _ = tg.UseAbility(ctx, AbilityHintV1, 0)
	assert.Equal(t, Rejected(ReasonNoUsesLeft), result)
	assert.Contains(t, tg.published.Names(), EventAbilityUsed)
}

func TestGame_FillAbilities(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 2)

	result, err := tg.UseAbility(ctx, AbilityFillRow, 9)
	require.NoError(t, err)
	assert.Equal(t, Rejected(ReasonOutOfRange), result)
	assert.Equal(t, 1, tg.State().Abilities[AbilityFillRow].UsesRemaining.Remaining())

	result, _ = tg.UseAbility(ctx, AbilityFillRow, 0)
	assert.Equal(t, Ok, result)
	assert.Equal(t, 45, emptyCount(tg.State()))
	result, _ = tg.UseAbility(ctx, AbilityFillRow, 1)
	assert.Equal(t, Rejected(ReasonNoUsesLeft), result)

	result, _ = tg.UseAbility(ctx, AbilityFillColumn, 4)
	assert.Equal(t, Ok, result)
	result, _ = tg.UseAbility(ctx, AbilityFillQuadrant, 4)
	assert.Equal(t, Ok, result)

	before := emptyCount(tg.State())
	result, _ = tg.UseAbility(ctx, AbilityHintV2, 0)
	assert.Equal(t, Ok, result)
	assert.Equal(t, before-1, emptyCount(tg.State()))
	assert.Empty(t, tg.wrongCells())
}

func TestGame_FillAbilityWithNothingToFill(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 2)
	tg.solve(t)

	result, err := tg.UseAbility(ctx, AbilityFillColumn, 3)
	require.NoError(t, err)
	assert.Equal(t, Rejected(ReasonNotEnoughEmptyCells), result)
	assert.Equal(t, 1, tg.State().Abilities[AbilityFillColumn].UsesRemaining.Remaining())
}

func TestGame_NewSudokuAbility(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 5)

	result, _ := tg.UseAbility(ctx, AbilityFillRow, 0)
	require.Equal(t, Ok, result)
	require.Equal(t, 45, emptyCount(tg.State()))

	result, err := tg.UseAbility(ctx, AbilityNewSudoku, 0)
	require.NoError(t, err)
	assert.Equal(t, Ok, result)

	state := tg.State()
	assert.Equal(t, 51, emptyCount(state))
	assert.Equal(t, 1, state.Abilities[AbilityFillRow].UsesRemaining.Remaining())
	// The board it loaded does not give the use back
	assert.Equal(t, 0, state.Abilities[AbilityNewSudoku].UsesRemaining.Remaining())

	result, err = tg.UseAbility(ctx, AbilityNewSudoku, 0)
	require.NoError(t, err)
	assert.Equal(t, Rejected(ReasonNoUsesLeft), result)

	require.NoError(t, tg.NewBoard(ctx, DifficultyEasy))
	assert.Equal(t, 0, tg.State().Abilities[AbilityNewSudoku].UsesRemaining.Remaining())

	// Solving a puzzle restores it
	tg.solve(t)
	submit, err := tg.SubmitBoard(ctx)
	require.NoError(t, err)
	require.True(t, submit.Completed)
	assert.Equal(t, 1, tg.State().Abilities[AbilityNewSudoku].UsesRemaining.Remaining())
}

func TestGame_NewAndResetBoard(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 0)

	require.Equal(t, Ok, tg.SetCell(ctx, 0, 2, 4).Result)
	assert.Equal(t, Ok, tg.ResetBoard(ctx))
	assert.Equal(t, 51, emptyCount(tg.State()))

	// Unconfigured difficulties fall back to the first board
	require.NoError(t, tg.NewBoard(ctx, DifficultyHard))
	assert.Equal(t, DifficultyEasy, tg.State().Board.Difficulty)
}

func TestGame_CheckAnswers(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 0)
	require.Equal(t, Ok, tg.SetCell(ctx, 0, 2, 4).Result)
	require.Equal(t, Ok, tg.SetCell(ctx, 0, 3, 2).Result)

	_, result := tg.CheckAnswers()
	assert.Equal(t, Rejected(ReasonDisabled), result)

	enabled := true
	settings := tg.UpdateSettings(ctx, &SettingsUpdate{CheckAnswersEnabled: &enabled})
	assert.True(t, settings.CheckAnswersEnabled)

	wrong, result := tg.CheckAnswers()
	assert.Equal(t, Ok, result)
	assert.Equal(t, []CellCoord{{Row: 0, Col: 3}}, wrong)

	stored, err := tg.store.LoadSettings(ctx)
	require.NoError(t, err)
	assert.True(t, stored.CheckAnswersEnabled)
	assert.True(t, stored.SoundEnabled)
}

func TestGame_CheckAnswersLocked(t *testing.T) {
	config := testConfig()
	config.Abilities[0].UnlockLevel = 2
	game := NewGame(config, NewMemoryStore(), &mockLogger{}, "user1")
	require.NoError(t, game.Load(context.Background()))

	_, result := game.CheckAnswers()
	assert.Equal(t, Rejected(ReasonLocked), result)
}

func TestGame_Autofill(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 5)
	require.True(t, tg.State().Abilities[AbilityAutofill].Unlocked)
	assert.False(t, tg.State().Autofill.Running)

	enabled := true
	tg.UpdateSettings(ctx, &SettingsUpdate{AutofillEnabled: &enabled})
	state := tg.State()
	assert.True(t, state.Autofill.Running)
	assert.Equal(t, 3, state.Autofill.Remaining)

	tg.scheduler.Tick(time.Second, 2)
	assert.Equal(t, 51, emptyCount(tg.State()))
	tg.scheduler.Tick(time.Second, 1)
	state = tg.State()
	assert.Equal(t, 50, emptyCount(state))
	assert.Equal(t, 1, state.Autofill.Filled)
	assert.Empty(t, tg.wrongCells())

	// A new puzzle restarts the countdown from the top
	tg.scheduler.Tick(time.Second, 2)
	require.NoError(t, tg.NewBoard(ctx, DifficultyEasy))
	assert.Equal(t, 3, tg.State().Autofill.Remaining)

	disabled := false
	tg.UpdateSettings(ctx, &SettingsUpdate{AutofillEnabled: &disabled})
	assert.False(t, tg.State().Autofill.Running)
	assert.Equal(t, 0, tg.scheduler.Active(time.Second))

	tg.scheduler.Tick(time.Second, 10)
	assert.Equal(t, 51, emptyCount(tg.State()))
}

func TestGame_AutofillLockedDoesNotRun(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 0)

	enabled := true
	tg.UpdateSettings(ctx, &SettingsUpdate{AutofillEnabled: &enabled})
	assert.False(t, tg.State().Autofill.Running)
	assert.Equal(t, 0, tg.scheduler.Active(time.Second))
}

func TestGame_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 5)
	enabled := true
	tg.UpdateSettings(ctx, &SettingsUpdate{AutofillEnabled: &enabled})
	tg.StartIdlePolling()
	require.Equal(t, 1, tg.scheduler.Active(5*time.Second))
	tg.scheduler.Tick(time.Second, 1)

	produced, err := tg.HandleLifecycle(ctx, AppStateBackground)
	require.NoError(t, err)
	assert.Equal(t, int64(0), produced)

	state := tg.State()
	assert.False(t, state.Foreground)
	assert.False(t, state.Autofill.Running)
	assert.Equal(t, 0, tg.scheduler.Active(5*time.Second))
	assert.Equal(t, 0, tg.scheduler.Active(time.Second))

	// 5.4 minutes away: pencil makes 10 cycles of 3, notebook 5 cycles of 5
	tg.clock.Advance(5*time.Minute + 24*time.Second)
	produced, err = tg.HandleLifecycle(ctx, AppStateActive)
	require.NoError(t, err)
	assert.Equal(t, int64(55), produced)

	state = tg.State()
	assert.True(t, state.Foreground)
	assert.Equal(t, int64(60), state.Player.AvailableSudokus)
	assert.True(t, state.Autofill.Running)
	assert.Equal(t, 3, state.Autofill.Remaining)
	assert.Equal(t, 1, tg.scheduler.Active(5*time.Second))

	_, err = tg.HandleLifecycle(ctx, AppStateInactive)
	require.NoError(t, err)
	assert.False(t, tg.State().Foreground)

	_, err = tg.HandleLifecycle(ctx, AppState("suspended"))
	assert.ErrorIs(t, err, ErrUnknownAppState)
}

func TestGame_BackgroundCreditsNothing(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 0)

	tg.clock.Advance(time.Minute)
	tg.EnterBackground(ctx)
	assert.Equal(t, int64(0), tg.State().Player.AvailableSudokus)

	// Time before the checkpoint is not credited on return
	assert.Equal(t, int64(0), tg.EnterForeground(ctx))
}

func TestGame_IdlePolling(t *testing.T) {
	tg := newTestGame(t, 0)
	tg.StartIdlePolling()
	require.Equal(t, 1, tg.scheduler.Active(5*time.Second))

	tg.clock.Advance(time.Minute)
	tg.scheduler.Tick(5*time.Second, 1)

	state := tg.State()
	assert.Equal(t, int64(6), state.Player.AvailableSudokus)
	assert.Equal(t, 3, state.Player.Level)
	assert.True(t, state.Abilities[AbilityAutofill].Unlocked)
	// Reaching level 3 unlocks the notebook idler
	assert.Contains(t, state.Idlers, "notebook")

	names := tg.published.Names()
	assert.Contains(t, names, EventIdleProduced)
	assert.Contains(t, names, EventLevelUp)

	tg.StopIdlePolling()
	assert.Equal(t, 0, tg.scheduler.Active(5*time.Second))
}

func TestGame_CollectIdleProduction(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 0)

	assert.Equal(t, int64(0), tg.CollectIdleProduction(ctx))
	tg.clock.Advance(30 * time.Second)
	assert.Equal(t, int64(3), tg.CollectIdleProduction(ctx))
	assert.Equal(t, int64(0), tg.CollectIdleProduction(ctx))
}

func TestGame_UpgradeIdler(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 12)

	assert.Equal(t, Ok, tg.UpgradeIdler(ctx, "pencil"))
	state := tg.State()
	assert.Equal(t, int64(2), state.Player.AvailableSudokus)
	assert.Equal(t, 2, state.Idlers["pencil"].Level)
	assert.Equal(t, 4, state.Player.Level)
	assert.Equal(t, Rejected(ReasonMaxLevel), tg.UpgradeIdler(ctx, "pencil"))
	assert.Contains(t, tg.published.Names(), EventIdlerUpgraded)
}

func TestGame_ResetGame(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 12)
	require.Equal(t, Ok, tg.UpgradeIdler(ctx, "pencil"))
	enabled := true
	tg.UpdateSettings(ctx, &SettingsUpdate{CheckAnswersEnabled: &enabled})

	require.NoError(t, tg.ResetGame(ctx))

	state := tg.State()
	assert.Equal(t, 1, state.Player.Level)
	assert.Equal(t, 1, state.Player.HighestLevel)
	assert.Equal(t, int64(0), state.Player.AvailableSudokus)
	assert.Len(t, state.Abilities, 2)
	assert.Equal(t, []string{"pencil"}, state.UnlockedIdlers)
	assert.Equal(t, 1, state.Idlers["pencil"].Level)
	assert.NotContains(t, state.Idlers, "notebook")
	assert.True(t, state.Settings.CheckAnswersEnabled)
	assert.Equal(t, 51, emptyCount(state))
	assert.Contains(t, tg.published.Names(), EventGameReset)
}

func TestGame_ResetGameStorageFailure(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 5)

	tg.store.SetFailing(true)
	err := tg.ResetGame(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotContains(t, tg.published.Names(), EventGameReset)

	// Memory state is reset regardless
	assert.Equal(t, 1, tg.State().Player.Level)
}

func TestGame_PublishedEventsAreStamped(t *testing.T) {
	tg := newTestGame(t, 0)
	tg.clock.Advance(time.Minute)
	tg.CollectIdleProduction(context.Background())

	tg.published.mu.Lock()
	defer tg.published.mu.Unlock()
	require.NotEmpty(t, tg.published.events)
	last := tg.published.events[len(tg.published.events)-1]
	assert.NotEmpty(t, last.Id)
	assert.Equal(t, tg.clock.Now().Unix(), last.Timestamp)
}

func TestGame_Close(t *testing.T) {
	ctx := context.Background()
	tg := newTestGame(t, 5)
	enabled := true
	tg.UpdateSettings(ctx, &SettingsUpdate{AutofillEnabled: &enabled})
	tg.StartIdlePolling()

	tg.Close()
	assert.Equal(t, 0, tg.scheduler.Active(time.Second))
	assert.Equal(t, 0, tg.scheduler.Active(5*time.Second))
}
