package sudokidle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	gameStorageCollection      = "sudokidle"
	abilitiesStorageCollection = "sudokidle_abilities"
	idlersStorageCollection    = "sudokidle_idlers"
	playerStorageKey           = "player"
	settingsStorageKey         = "settings"
	storageListPageSize        = 100
)

// NakamaStore keeps one user's records in Nakama storage. The player and settings records are
// single objects; ability and idler records are one object each, keyed by id.
type NakamaStore struct {
	nk     runtime.NakamaModule
	userID string

	mu        sync.Mutex
	lastSaved time.Time
}

func NewNakamaStore(nk runtime.NakamaModule, userID string) *NakamaStore {
	return &NakamaStore{nk: nk, userID: userID}
}

// LastSaved returns the server update time of the most recently read or written player record.
func (s *NakamaStore) LastSaved() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

func (s *NakamaStore) observe(object *api.StorageObject) {
	if object == nil || object.UpdateTime == nil {
		return
	}
	t := object.UpdateTime.AsTime()
	s.mu.Lock()
	if t.After(s.lastSaved) {
		s.lastSaved = t
	}
	s.mu.Unlock()
}

func (s *NakamaStore) read(ctx context.Context, collection, key string) (*api.StorageObject, error) {
	objects, err := s.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: collection,
		Key:        key,
		UserID:     s.userID,
	}})
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", collection, key, err)
	}
	for _, object := range objects {
		if object.Value != "" {
			return object, nil
		}
	}
	return nil, nil
}

func (s *NakamaStore) write(ctx context.Context, collection, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	_, err = s.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      collection,
		Key:             key,
		UserID:          s.userID,
		Value:           string(data),
		PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_OWNER_WRITE,
	}})
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, key, err)
	}
	return nil
}

// list pages through every object the user owns in collection.
func (s *NakamaStore) list(ctx context.Context, collection string) ([]*api.StorageObject, error) {
	var all []*api.StorageObject
	cursor := ""
	for {
		objects, next, err := s.nk.StorageList(ctx, "", s.userID, collection, storageListPageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		all = append(all, objects...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

func (s *NakamaStore) clear(ctx context.Context, collection string) error {
	objects, err := s.list(ctx, collection)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return nil
	}

	deletes := make([]*runtime.StorageDelete, 0, len(objects))
	for _, object := range objects {
		deletes = append(deletes, &runtime.StorageDelete{
			Collection: collection,
			Key:        object.Key,
			UserID:     s.userID,
		})
	}
	if err := s.nk.StorageDelete(ctx, deletes); err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

func (s *NakamaStore) LoadPlayer(ctx context.Context) (*PlayerProgress, error) {
	object, err := s.read(ctx, gameStorageCollection, playerStorageKey)
	if err != nil || object == nil {
		return nil, err
	}
	s.observe(object)

	progress := &PlayerProgress{}
	if err := json.Unmarshal([]byte(object.Value), progress); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return progress, nil
}

func (s *NakamaStore) SavePlayer(ctx context.Context, progress *PlayerProgress) error {
	if err := s.write(ctx, gameStorageCollection, playerStorageKey, progress); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastSaved = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *NakamaStore) LoadAbilities(ctx context.Context) (map[string]*AbilityUnlock, error) {
	objects, err := s.list(ctx, abilitiesStorageCollection)
	if err != nil {
		return nil, err
	}

	unlocks := make(map[string]*AbilityUnlock, len(objects))
	for _, object := range objects {
		unlock := &AbilityUnlock{}
		if err := json.Unmarshal([]byte(object.Value), unlock); err != nil {
			return nil, fmt.Errorf("decode ability %s: %w", object.Key, err)
		}
		if unlock.AbilityId == "" {
			unlock.AbilityId = object.Key
		}
		unlocks[unlock.AbilityId] = unlock
	}
	return unlocks, nil
}

func (s *NakamaStore) SaveAbility(ctx context.Context, unlock *AbilityUnlock) error {
	return s.write(ctx, abilitiesStorageCollection, unlock.AbilityId, unlock)
}

func (s *NakamaStore) ClearAbilities(ctx context.Context) error {
	return s.clear(ctx, abilitiesStorageCollection)
}

func (s *NakamaStore) LoadIdlers(ctx context.Context) (map[string]*IdlerProgress, error) {
	objects, err := s.list(ctx, idlersStorageCollection)
	if err != nil {
		return nil, err
	}

	idlers := make(map[string]*IdlerProgress, len(objects))
	for _, object := range objects {
		progress := &IdlerProgress{}
		if err := json.Unmarshal([]byte(object.Value), progress); err != nil {
			return nil, fmt.Errorf("decode idler %s: %w", object.Key, err)
		}
		if progress.IdlerId == "" {
			progress.IdlerId = object.Key
		}
		idlers[progress.IdlerId] = progress
	}
	return idlers, nil
}

func (s *NakamaStore) SaveIdler(ctx context.Context, progress *IdlerProgress) error {
	return s.write(ctx, idlersStorageCollection, progress.IdlerId, progress)
}

func (s *NakamaStore) ClearIdlers(ctx context.Context) error {
	return s.clear(ctx, idlersStorageCollection)
}

func (s *NakamaStore) LoadSettings(ctx context.Context) (*Settings, error) {
	object, err := s.read(ctx, gameStorageCollection, settingsStorageKey)
	if err != nil || object == nil {
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal([]byte(object.Value), settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

func (s *NakamaStore) SaveSettings(ctx context.Context, settings *Settings) error {
	return s.write(ctx, gameStorageCollection, settingsStorageKey, settings)
}
