package sudokidle

import (
	"context"
	"math"
	"strconv"

	"github.com/heroiclabs/nakama-common/runtime"
)

// IdleProduction implements the IdlersSystem interface over a Store, crediting a Ledger.
type IdleProduction struct {
	eventQueue

	config *Config
	store  Store
	logger runtime.Logger
	ledger Ledger
	clock  Clock
	idlers map[string]*IdlerProgress
}

func NewIdleProduction(config *Config, store Store, logger runtime.Logger, ledger Ledger, clock Clock) *IdleProduction {
	if clock == nil {
		clock = RealClock{}
	}
	return &IdleProduction{
		config: config,
		store:  store,
		logger: logger,
		ledger: ledger,
		clock:  clock,
		idlers: make(map[string]*IdlerProgress),
	}
}

func (i *IdleProduction) GetType() SystemType {
	return SystemTypeIdlers
}

func (i *IdleProduction) GetConfig() any {
	return i.config
}

// SetClock replaces the time source.
func (i *IdleProduction) SetClock(clock Clock) {
	i.clock = clock
}

func (i *IdleProduction) Load(ctx context.Context) error {
	idlers, err := i.store.LoadIdlers(ctx)
	if err != nil {
		i.logger.Error("Failed to load idlers: %v", err)
		return err
	}
	if idlers == nil {
		idlers = make(map[string]*IdlerProgress)
	}
	i.idlers = idlers
	return nil
}

func (i *IdleProduction) UnlockedIdlers() []string {
	highest := i.ledger.HighestLevel()
	unlocked := make([]string, 0, len(i.config.Idlers))
	for _, idler := range i.config.Idlers {
		if highest >= idler.UnlockLevel {
			unlocked = append(unlocked, idler.Id)
		}
	}
	return unlocked
}

func (i *IdleProduction) Activate(ctx context.Context, idlerID string) Result {
	config := i.config.Idler(idlerID)
	if config == nil {
		return Rejected(ReasonUnknownID)
	}
	if i.ledger.HighestLevel() < config.UnlockLevel {
		return Rejected(ReasonLocked)
	}
	if _, found := i.idlers[idlerID]; found {
		return Ok
	}

	progress := &IdlerProgress{
		IdlerId:        idlerID,
		Level:          1,
		LastUpdateTime: i.clock.Now().UnixMilli(),
	}
	i.idlers[idlerID] = progress
	i.save(ctx, progress)
	return Ok
}

// cycles returns the whole cycles completed between the idler's last update and nowMs, and the
// fraction of the next cycle already elapsed.
func cycles(progress *IdlerProgress, level *IdlerConfigLevel, nowMs int64) (int64, float64) {
	elapsedMs := nowMs - progress.LastUpdateTime
	if elapsedMs <= 0 {
		return 0, 0
	}
	elapsedMinutes := float64(elapsedMs) / 60000
	whole, frac := math.Modf(elapsedMinutes * level.RatePerMinute)
	return int64(whole), frac
}

func (i *IdleProduction) CalculateProduction(ctx context.Context, idlerID string) int64 {
	progress, found := i.idlers[idlerID]
	if !found {
		return 0
	}
	config := i.config.Idler(idlerID)
	if config == nil {
		return 0
	}
	level := config.Level(progress.Level)
	if level == nil {
		return 0
	}

	now := i.clock.Now().UnixMilli()
	completed, _ := cycles(progress, level, now)
	produced := completed * level.SudokusProduced
	if produced <= 0 {
		// Leave the watermark so elapsed time keeps accumulating toward the next cycle
		return 0
	}

	i.ledger.AddSudokus(ctx, produced)
	progress.LastUpdateTime = now
	i.save(ctx, progress)

	i.emit(SystemTypeIdlers, EventIdleProduced, idlerID, strconv.FormatInt(produced, 10), map[string]string{
		"cycles": strconv.FormatInt(completed, 10),
	})
	return produced
}

func (i *IdleProduction) CalculateAll(ctx context.Context) int64 {
	var total int64
	for _, config := range i.config.Idlers {
		total += i.CalculateProduction(ctx, config.Id)
	}
	return total
}

func (i *IdleProduction) Preview(idlerID string) *IdlerPreview {
	progress, found := i.idlers[idlerID]
	if !found {
		return nil
	}
	config := i.config.Idler(idlerID)
	if config == nil {
		return nil
	}
	level := config.Level(progress.Level)
	if level == nil {
		return nil
	}

	completed, frac := cycles(progress, level, i.clock.Now().UnixMilli())
	preview := &IdlerPreview{
		IdlerId:          idlerID,
		Level:            progress.Level,
		MaxLevel:         config.MaxLevel(),
		PendingCycles:    completed,
		PendingSudokus:   completed * level.SudokusProduced,
		CycleProgress:    frac,
		SudokusPerMinute: level.RatePerMinute * float64(level.SudokusProduced),
	}
	if next := config.Level(progress.Level + 1); next != nil {
		preview.NextUpgradeCost = next.UpgradeCost
	}
	return preview
}

func (i *IdleProduction) Upgrade(ctx context.Context, idlerID string) Result {
	config := i.config.Idler(idlerID)
	if config == nil {
		return Rejected(ReasonUnknownID)
	}

	// First reference initializes the record at level 1
	if result := i.Activate(ctx, idlerID); !result.OK() {
		return result
	}
	progress := i.idlers[idlerID]

	next := config.Level(progress.Level + 1)
	if next == nil {
		return Rejected(ReasonMaxLevel)
	}
	if next.UpgradeCost > i.ledger.AvailableSudokus() {
		return Rejected(ReasonInsufficientCurrency)
	}

	i.ledger.SpendSudokus(ctx, next.UpgradeCost)
	progress.Level++
	// Pending production is not credited retroactively
	progress.LastUpdateTime = i.clock.Now().UnixMilli()
	i.save(ctx, progress)

	i.emit(SystemTypeIdlers, EventIdlerUpgraded, idlerID, strconv.Itoa(progress.Level), map[string]string{
		"cost": strconv.FormatInt(next.UpgradeCost, 10),
	})
	return Ok
}

func (i *IdleProduction) Checkpoint(ctx context.Context) {
	now := i.clock.Now().UnixMilli()
	for _, progress := range i.idlers {
		if now > progress.LastUpdateTime {
			progress.LastUpdateTime = now
		}
		i.save(ctx, progress)
	}
}

func (i *IdleProduction) Get(idlerID string) *IdlerProgress {
	progress, found := i.idlers[idlerID]
	if !found {
		return nil
	}
	c := *progress
	return &c
}

func (i *IdleProduction) List() map[string]*IdlerProgress {
	list := make(map[string]*IdlerProgress, len(i.idlers))
	for id, progress := range i.idlers {
		c := *progress
		list[id] = &c
	}
	return list
}

func (i *IdleProduction) Reset(ctx context.Context) error {
	i.idlers = make(map[string]*IdlerProgress)
	if err := i.store.ClearIdlers(ctx); err != nil {
		i.logger.Error("Failed to clear idlers: %v", err)
		return err
	}
	return nil
}

func (i *IdleProduction) save(ctx context.Context, progress *IdlerProgress) {
	if err := i.store.SaveIdler(ctx, progress); err != nil {
		i.logger.Error("Failed to save idler %s: %v", progress.IdlerId, err)
	}
}

var _ IdlersSystem = &IdleProduction{}
