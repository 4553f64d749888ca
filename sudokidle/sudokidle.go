package sudokidle

import (
	"context"
	"sync"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// SystemType identifies one of the gameplay systems that make up a game.
type SystemType uint

const (
	SystemTypeUnknown SystemType = iota
	SystemTypePlayer
	SystemTypeAbilities
	SystemTypeIdlers
)

func (s SystemType) String() string {
	switch s {
	case SystemTypePlayer:
		return "player"
	case SystemTypeAbilities:
		return "abilities"
	case SystemTypeIdlers:
		return "idlers"
	default:
		return "unknown"
	}
}

// System is the base type for the gameplay systems owned by a Game.
type System interface {
	// GetType provides the runtime type of the gameplay system.
	GetType() SystemType

	// GetConfig returns the configuration type of the gameplay system.
	GetConfig() any
}

// StoreFactory builds the record store for one user.
type StoreFactory func(nk runtime.NakamaModule, userID string) Store

// Sudokidle keeps one live Game per user and serves them over Nakama RPCs.
type Sudokidle struct {
	mu           sync.Mutex
	config       *Config
	clock        Clock
	scheduler    Scheduler
	publishers   []Publisher
	storeFactory StoreFactory
	games        map[string]*Game
	loading      map[string]*gameLoad
}

// gameLoad is a first load in progress. Concurrent requests for the same user wait on done.
type gameLoad struct {
	done chan struct{}
	game *Game
	err  error
}

// NewSudokidle creates a registry whose games persist to Nakama storage.
func NewSudokidle(config *Config) *Sudokidle {
	return &Sudokidle{
		config: config,
		clock:  RealClock{},
		storeFactory: func(nk runtime.NakamaModule, userID string) Store {
			return NewNakamaStore(nk, userID)
		},
		games:   make(map[string]*Game),
		loading: make(map[string]*gameLoad),
	}
}

// Init creates a registry and registers the game RPCs.
func Init(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, config *Config) (*Sudokidle, error) {
	if config == nil {
		return nil, ErrConfigNotLoaded
	}
	s := NewSudokidle(config)
	if err := s.registerRpcs(initializer); err != nil {
		logger.Error("Failed to register sudokidle RPCs: %v", err)
		return nil, err
	}
	if err := initializer.RegisterEventSessionEnd(s.onSessionEnd); err != nil {
		logger.Error("Failed to register sudokidle session end handler: %v", err)
		return nil, err
	}
	logger.Info("Sudokidle initialized with %d abilities, %d idlers and %d boards", len(config.Abilities), len(config.Idlers), len(config.Boards))
	return s, nil
}

func (s *Sudokidle) GetConfig() *Config {
	return s.config
}

// SetScheduler sets the scheduler handed to games created from now on.
func (s *Sudokidle) SetScheduler(scheduler Scheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler = scheduler
}

func (s *Sudokidle) SetClock(clock Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *Sudokidle) SetStoreFactory(factory StoreFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeFactory = factory
}

// AddPublisher adds a publisher to games created from now on.
func (s *Sudokidle) AddPublisher(publisher Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishers = append(s.publishers, publisher)
}

// GameFor returns the user's live game, creating and loading it on first use. Storage is read
// outside the registry lock; concurrent first requests for one user share a single load.
func (s *Sudokidle) GameFor(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (*Game, error) {
	s.mu.Lock()
	if game, found := s.games[userID]; found {
		s.mu.Unlock()
		return game, nil
	}
	if load, found := s.loading[userID]; found {
		s.mu.Unlock()
		select {
		case <-load.done:
			return load.game, load.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	load := &gameLoad{done: make(chan struct{})}
	s.loading[userID] = load
	game := NewGame(s.config, s.storeFactory(nk, userID), logger, userID)
	game.SetClock(s.clock)
	if s.scheduler != nil {
		game.SetScheduler(s.scheduler)
	}
	for _, p := range s.publishers {
		game.AddPublisher(p)
	}
	s.mu.Unlock()

	err := game.Load(ctx)
	if err != nil {
		logger.Error("Failed to load game for user %s: %v", userID, err)
		game.Close()
		game = nil
	}

	s.mu.Lock()
	delete(s.loading, userID)
	if game != nil {
		game.StartIdlePolling()
		s.games[userID] = game
	}
	load.game, load.err = game, err
	close(load.done)
	s.mu.Unlock()

	return game, err
}

// EndSession checkpoints a user's live game and evicts it. Users without a live game are
// ignored.
func (s *Sudokidle) EndSession(ctx context.Context, userID string) bool {
	s.mu.Lock()
	game, found := s.games[userID]
	delete(s.games, userID)
	s.mu.Unlock()

	if !found {
		return false
	}
	game.EnterBackground(ctx)
	game.Close()
	return true
}

func (s *Sudokidle) onSessionEnd(ctx context.Context, logger runtime.Logger, evt *api.Event) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return
	}
	if s.EndSession(ctx, userID) {
		logger.Debug("Checkpointed and evicted game for user %s", userID)
	}
}

// Evict stops and forgets a user's live game. The next request loads it again from storage.
func (s *Sudokidle) Evict(userID string) {
	s.mu.Lock()
	game, found := s.games[userID]
	delete(s.games, userID)
	s.mu.Unlock()

	if found {
		game.Close()
	}
}

// Close stops every live game.
func (s *Sudokidle) Close() {
	s.mu.Lock()
	games := s.games
	s.games = make(map[string]*Game)
	s.mu.Unlock()

	for _, game := range games {
		game.Close()
	}
}
