package sudokidle

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	AbilityHintV1       = "hintV1"
	AbilityHintV2       = "hintV2"
	AbilityFillRow      = "fillRow"
	AbilityFillColumn   = "fillColumn"
	AbilityFillQuadrant = "fillQuadrant"
	AbilityAutofill     = "autofill"
	AbilityNewSudoku    = "newSudoku"
	AbilityCheckAnswers = "checkAnswers"
)

// Uses is a per-puzzle use budget: either unlimited or a remaining count.
type Uses struct {
	limited   bool
	remaining int
}

func UnlimitedUses() Uses {
	return Uses{}
}

func LimitedUses(remaining int) Uses {
	if remaining < 0 {
		remaining = 0
	}
	return Uses{limited: true, remaining: remaining}
}

// Limited reports whether the budget is finite.
func (u Uses) Limited() bool {
	return u.limited
}

// Remaining returns the uses left. It is meaningless for an unlimited budget.
func (u Uses) Remaining() int {
	return u.remaining
}

// Available reports whether at least one more use is allowed.
func (u Uses) Available() bool {
	return !u.limited || u.remaining > 0
}

// Decrement consumes one use of a finite budget.
func (u Uses) Decrement() Uses {
	if !u.limited || u.remaining == 0 {
		return u
	}
	return LimitedUses(u.remaining - 1)
}

func (u Uses) String() string {
	if !u.limited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", u.remaining)
}

// MarshalJSON writes null for an unlimited budget and the remaining count otherwise.
func (u Uses) MarshalJSON() ([]byte, error) {
	if !u.limited {
		return []byte("null"), nil
	}
	return json.Marshal(u.remaining)
}

func (u *Uses) UnmarshalJSON(data []byte) error {
	var remaining *int
	if err := json.Unmarshal(data, &remaining); err != nil {
		return err
	}
	if remaining == nil {
		*u = UnlimitedUses()
	} else {
		*u = LimitedUses(*remaining)
	}
	return nil
}

// AbilityUnlock is the stored unlock record of one ability.
type AbilityUnlock struct {
	AbilityId     string `json:"ability_id"`
	Unlocked      bool   `json:"unlocked"`
	UsesRemaining Uses   `json:"uses_remaining"`
}

// The AbilitiesSystem tracks which abilities are unlocked and how many uses each has left in the
// current puzzle. Unlocks follow the player's highest level achieved and are never revoked.
type AbilitiesSystem interface {
	System

	// Load reads the stored unlock records.
	Load(ctx context.Context) error

	// IsUnlocked reports whether the ability has been unlocked.
	IsUnlocked(abilityID string) bool

	// CanUse reports whether the ability is unlocked and has uses left.
	CanUse(abilityID string) bool

	// Check is CanUse with the reason the ability cannot be used.
	Check(abilityID string) Result

	// Use consumes one use of the ability.
	Use(ctx context.Context, abilityID string) Result

	// ResetUses restores the configured budget of one unlocked ability.
	ResetUses(ctx context.Context, abilityID string) Result

	// RefillUses restores the budget of every unlocked ability that refills on the given trigger.
	RefillUses(ctx context.Context, trigger Refill)

	// CheckUnlocks unlocks every ability whose level requirement is met and returns the newly
	// unlocked ids.
	CheckUnlocks(ctx context.Context, highestLevel int) []string

	// Get returns a copy of the unlock record, or nil when the ability has none.
	Get(abilityID string) *AbilityUnlock

	// List returns copies of all unlock records.
	List() map[string]*AbilityUnlock

	// Reset clears every unlock record and returns any storage error.
	Reset(ctx context.Context) error
}
