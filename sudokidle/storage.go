package sudokidle

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Store is the record store behind a Game. Every save is a full-record upsert keyed by a stable
// id, so concurrent writes of the same record resolve as last writer wins.
//
// LoadPlayer and LoadSettings return nil with no error when nothing has been stored yet.
type Store interface {
	LoadPlayer(ctx context.Context) (*PlayerProgress, error)
	SavePlayer(ctx context.Context, progress *PlayerProgress) error

	LoadAbilities(ctx context.Context) (map[string]*AbilityUnlock, error)
	SaveAbility(ctx context.Context, unlock *AbilityUnlock) error
	ClearAbilities(ctx context.Context) error

	LoadIdlers(ctx context.Context) (map[string]*IdlerProgress, error)
	SaveIdler(ctx context.Context, progress *IdlerProgress) error
	ClearIdlers(ctx context.Context) error

	LoadSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, settings *Settings) error
}

// SaveTimeReporter is implemented by stores that know when the player record was last written.
type SaveTimeReporter interface {
	LastSaved() time.Time
}

// ErrStoreUnavailable is returned by a MemoryStore while failures are switched on.
var ErrStoreUnavailable = errors.New("store unavailable")

// MemoryStore keeps records in process memory. It copies on every read and write.
type MemoryStore struct {
	sync.Mutex
	player    *PlayerProgress
	abilities map[string]*AbilityUnlock
	idlers    map[string]*IdlerProgress
	settings  *Settings

	failing bool
	writes  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		abilities: make(map[string]*AbilityUnlock),
		idlers:    make(map[string]*IdlerProgress),
	}
}

// SetFailing makes every subsequent call fail with ErrStoreUnavailable until switched off.
func (s *MemoryStore) SetFailing(failing bool) {
	s.Lock()
	s.failing = failing
	s.Unlock()
}

// Writes returns the number of successful write calls.
func (s *MemoryStore) Writes() int {
	s.Lock()
	defer s.Unlock()
	return s.writes
}

func (s *MemoryStore) LoadPlayer(ctx context.Context) (*PlayerProgress, error) {
	s.Lock()
	defer s.Unlock()
	if s.failing {
		return nil, ErrStoreUnavailable
	}
	if s.player == nil {
		return nil, nil
	}
	return s.player.Clone(), nil
}

func (s *MemoryStore) SavePlayer(ctx context.Context, progress *PlayerProgress) error {
	s.Lock()
	defer s.Unlock()
	if s.failing {
		return ErrStoreUnavailable
	}
	s.player = progress.Clone()
	s.writes++
	return nil
}

func (s *MemoryStore) LoadAbilities(ctx context.Context) (map[string]*AbilityUnlock, error) {
	s.Lock()
	defer s.Unlock()
	if s.failing {
		return nil, ErrStoreUnavailable
	}
	unlocks := make(map[string]*AbilityUnlock, len(s.abilities))
	for id, unlock := range s.abilities {
		c := *unlock
		unlocks[id] = &c
	}
	return unlocks, nil
}

func (s *MemoryStore) SaveAbility(ctx context.Context, unlock *AbilityUnlock) error {
	s.Lock()
	defer s.Unlock()
	if s.failing {
		return ErrStoreUnavailable
	}
	c := *unlock
	s.abilities[unlock.AbilityId] = &c
	s.writes++
	return nil
}

func (s *MemoryStore) ClearAbilities(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()
	if s.failing {
		return ErrStoreUnavailable
	}
	s.abilities = make(map[string]*AbilityUnlock)
	s.writes++
	return nil
}

func (s *MemoryStore) LoadIdlers(ctx context.Context) (map[string]*IdlerProgress, error) {
	s.Lock()
	defer s.Unlock()
	if s.failing {
		return nil, ErrStoreUnavailable
	}
	idlers := make(map[string]*IdlerProgress, len(s.idlers))
	for id, progress := range s.idlers {
		c := *progress
		idlers[id] = &c
	}
	return idlers, nil
}

func (s *MemoryStore) SaveIdler(ctx context.Context, progress *IdlerProgress) error {
	s.Lock()
	defer s.Unlock()
	if s.failing {
		return ErrStoreUnavailable
	}
	c := *progress
	s.idlers[progress.IdlerId] = &c
	s.writes++
	return nil
}

func (s *MemoryStore) ClearIdlers(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()
	if s.failing {
		return ErrStoreUnavailable
	}
	s.idlers = make(map[string]*IdlerProgress)
	s.writes++
	return nil
}

func (s *MemoryStore) LoadSettings(ctx context.Context) (*Settings, error) {
	s.Lock()
	defer s.Unlock()
	if s.failing {
		return nil, ErrStoreUnavailable
	}
	if s.settings == nil {
		return nil, nil
	}
	c := *s.settings
	return &c, nil
}

func (s *MemoryStore) SaveSettings(ctx context.Context, settings *Settings) error {
	s.Lock()
	defer s.Unlock()
	if s.failing {
		return ErrStoreUnavailable
	}
	c := *settings
	s.settings = &c
	s.writes++
	return nil
}

var (
	_ Store = &MemoryStore{}
	_ Store = &NakamaStore{}
	_ Store = &SQLiteStore{}

	_ SaveTimeReporter = &NakamaStore{}
)
