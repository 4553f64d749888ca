package sudokidle

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// AbilityGate implements the AbilitiesSystem interface over a Store.
type AbilityGate struct {
	eventQueue

	config  *Config
	store   Store
	logger  runtime.Logger
	unlocks map[string]*AbilityUnlock
}

func NewAbilityGate(config *Config, store Store, logger runtime.Logger) *AbilityGate {
	return &AbilityGate{
		config:  config,
		store:   store,
		logger:  logger,
		unlocks: make(map[string]*AbilityUnlock),
	}
}

func (a *AbilityGate) GetType() SystemType {
	return SystemTypeAbilities
}

func (a *AbilityGate) GetConfig() any {
	return a.config
}

func (a *AbilityGate) Load(ctx context.Context) error {
	unlocks, err := a.store.LoadAbilities(ctx)
	if err != nil {
		a.logger.Error("Failed to load ability unlocks: %v", err)
		return err
	}
	if unlocks == nil {
		unlocks = make(map[string]*AbilityUnlock)
	}
	a.unlocks = unlocks
	return nil
}

func (a *AbilityGate) IsUnlocked(abilityID string) bool {
	unlock, found := a.unlocks[abilityID]
	return found && unlock.Unlocked
}

func (a *AbilityGate) CanUse(abilityID string) bool {
	return a.Check(abilityID).OK()
}

func (a *AbilityGate) Check(abilityID string) Result {
	if a.config.Ability(abilityID) == nil {
		return Rejected(ReasonUnknownID)
	}
	unlock, found := a.unlocks[abilityID]
	if !found || !unlock.Unlocked {
		return Rejected(ReasonLocked)
	}
	if !unlock.UsesRemaining.Available() {
		return Rejected(ReasonNoUsesLeft)
	}
	return Ok
}

func (a *AbilityGate) Use(ctx context.Context, abilityID string) Result {
	if result := a.Check(abilityID); !result.OK() {
		a.logger.Debug("Ability %s not usable: %v", abilityID, result)
		return result
	}

	unlock := a.unlocks[abilityID]
	if unlock.UsesRemaining.Limited() {
		unlock.UsesRemaining = unlock.UsesRemaining.Decrement()
		a.save(ctx, unlock)
	}
	a.emit(SystemTypeAbilities, EventAbilityUsed, abilityID, unlock.UsesRemaining.String(), nil)
	return Ok
}

func (a *AbilityGate) ResetUses(ctx context.Context, abilityID string) Result {
	config := a.config.Ability(abilityID)
	if config == nil {
		return Rejected(ReasonUnknownID)
	}
	unlock, found := a.unlocks[abilityID]
	if !found || !unlock.Unlocked {
		return Rejected(ReasonLocked)
	}

	unlock.UsesRemaining = config.InitialUses()
	a.save(ctx, unlock)
	return Ok
}

func (a *AbilityGate) RefillUses(ctx context.Context, trigger Refill) {
	for _, config := range a.config.Abilities {
		refill := config.Refill
		if refill == "" {
			refill = RefillNewBoard
		}
		if refill == trigger && a.IsUnlocked(config.Id) {
			a.ResetUses(ctx, config.Id)
		}
	}
}

func (a *AbilityGate) CheckUnlocks(ctx context.Context, highestLevel int) []string {
	var unlocked []string
	for _, config := range a.config.Abilities {
		if highestLevel < config.UnlockLevel || a.IsUnlocked(config.Id) {
			continue
		}

		unlock := &AbilityUnlock{
			AbilityId:     config.Id,
			Unlocked:      true,
			UsesRemaining: config.InitialUses(),
		}
		a.unlocks[config.Id] = unlock
		a.save(ctx, unlock)

		unlocked = append(unlocked, config.Id)
		a.emit(SystemTypeAbilities, EventAbilityUnlocked, config.Id, config.Name, nil)
	}
	return unlocked
}

func (a *AbilityGate) Get(abilityID string) *AbilityUnlock {
	unlock, found := a.unlocks[abilityID]
	if !found {
		return nil
	}
	c := *unlock
	return &c
}

func (a *AbilityGate) List() map[string]*AbilityUnlock {
	list := make(map[string]*AbilityUnlock, len(a.unlocks))
	for id, unlock := range a.unlocks {
		c := *unlock
		list[id] = &c
	}
	return list
}

func (a *AbilityGate) Reset(ctx context.Context) error {
	a.unlocks = make(map[string]*AbilityUnlock)
	if err := a.store.ClearAbilities(ctx); err != nil {
		a.logger.Error("Failed to clear ability unlocks: %v", err)
		return err
	}
	return nil
}

func (a *AbilityGate) save(ctx context.Context, unlock *AbilityUnlock) {
	if err := a.store.SaveAbility(ctx, unlock); err != nil {
		a.logger.Error("Failed to save ability %s: %v", unlock.AbilityId, err)
	}
}

var _ AbilitiesSystem = &AbilityGate{}
