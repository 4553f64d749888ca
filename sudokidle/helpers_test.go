package sudokidle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	testPuzzle   = "530070000600195000098000060800060003400803001700020006060000280000419005000080079"
	testSolution = "534678912672195348198342567859761423426853791713924856961537284287419635345286179"
)

type mockLogger struct{}

func (l *mockLogger) Debug(format string, v ...interface{})                   {}
func (l *mockLogger) Info(format string, v ...interface{})                    {}
func (l *mockLogger) Warn(format string, v ...interface{})                    {}
func (l *mockLogger) Error(format string, v ...interface{})                   {}
func (l *mockLogger) WithField(key string, v interface{}) runtime.Logger      { return l }
func (l *mockLogger) WithFields(fields map[string]interface{}) runtime.Logger { return l }
func (l *mockLogger) Fields() map[string]interface{}                          { return nil }

func intPtr(v int) *int {
	return &v
}

// testConfig is a small game: level 2 at 2 sudokus, level 3 at 5, level 4 at 10, level 5 at 20.
func testConfig() *Config {
	config := &Config{
		LevelRequirements: []*LevelRequirement{
			{Level: 1, RequiredSudokus: 0},
			{Level: 2, RequiredSudokus: 2},
			{Level: 3, RequiredSudokus: 5},
			{Level: 4, RequiredSudokus: 10},
			{Level: 5, RequiredSudokus: 20},
		},
		Abilities: []*AbilityConfig{
			{Id: AbilityCheckAnswers, UnlockLevel: 1},
			{Id: AbilityHintV1, UnlockLevel: 1, MaxUses: intPtr(3)},
			{Id: AbilityHintV2, UnlockLevel: 2, MaxUses: intPtr(2)},
			{Id: AbilityFillRow, UnlockLevel: 2, MaxUses: intPtr(1)},
			{Id: AbilityFillColumn, UnlockLevel: 2, MaxUses: intPtr(1)},
			{Id: AbilityFillQuadrant, UnlockLevel: 2, MaxUses: intPtr(1)},
			{Id: AbilityNewSudoku, UnlockLevel: 3, MaxUses: intPtr(1), Refill: RefillCompletion},
			{Id: AbilityAutofill, UnlockLevel: 3},
		},
		Idlers: []*IdlerConfig{
			{
				Id:          "pencil",
				UnlockLevel: 1,
				Levels: []*IdlerConfigLevel{
					{Level: 1, SudokusProduced: 3, RatePerMinute: 2, UpgradeCost: 0},
					{Level: 2, SudokusProduced: 5, RatePerMinute: 2, UpgradeCost: 10},
				},
			},
			{
				Id:          "notebook",
				UnlockLevel: 3,
				Levels: []*IdlerConfigLevel{
					{Level: 1, SudokusProduced: 5, RatePerMinute: 1, UpgradeCost: 0},
				},
			},
		},
		Autofill:            AutofillConfig{CountdownTicks: 3, TickIntervalSec: 1},
		IdlePollIntervalSec: 5,
		DefaultDifficulty:   DifficultyEasy,
		Boards: []*BoardConfig{
			{Puzzle: testPuzzle, Solution: testSolution, Difficulty: DifficultyEasy},
		},
	}
	return config
}

func testBoard(t *testing.T) *Board {
	t.Helper()
	puzzle, err := ParseGrid(testPuzzle)
	require.NoError(t, err)
	solution, err := ParseGrid(testSolution)
	require.NoError(t, err)
	return &Board{Puzzle: puzzle, Solution: solution, Difficulty: DifficultyEasy}
}

// manualScheduler runs tasks only when a test ticks it.
type manualScheduler struct {
	mu     sync.Mutex
	nextID int
	tasks  map[int]*manualTask
}

type manualTask struct {
	interval time.Duration
	fn       func()
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{tasks: make(map[int]*manualTask)}
}

func (s *manualScheduler) Every(interval time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.tasks[id] = &manualTask{interval: interval, fn: fn}
	return func() {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
	}
}

// Tick runs every task registered with interval, n times over.
func (s *manualScheduler) Tick(interval time.Duration, n int) {
	for i := 0; i < n; i++ {
		s.mu.Lock()
		ids := make([]int, 0, len(s.tasks))
		for id, task := range s.tasks {
			if task.interval == interval {
				ids = append(ids, id)
			}
		}
		sort.Ints(ids)
		fns := make([]func(), 0, len(ids))
		for _, id := range ids {
			fns = append(fns, s.tasks[id].fn)
		}
		s.mu.Unlock()

		for _, fn := range fns {
			fn()
		}
	}
}

func (s *manualScheduler) Active(interval time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, task := range s.tasks {
		if task.interval == interval {
			n++
		}
	}
	return n
}

// recordingPublisher keeps every event it is sent.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*Event
}

func (p *recordingPublisher) Send(ctx context.Context, logger runtime.Logger, userID string, events []*Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.Name)
	}
	return names
}

// testNakamaModule fakes the storage, file and notification parts of the Nakama runtime.
type testNakamaModule struct {
	runtime.NakamaModule

	mu            sync.Mutex
	storage       map[string]*api.StorageObject
	files         map[string]string
	notifications []*runtime.NotificationSend
	failWrites    bool
}

func newTestNakama() *testNakamaModule {
	return &testNakamaModule{
		storage: make(map[string]*api.StorageObject),
		files:   make(map[string]string),
	}
}

func storageKey(userID, collection, key string) string {
	return userID + ":" + collection + ":" + key
}

func (m *testNakamaModule) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*api.StorageObject
	for _, r := range reads {
		if object, ok := m.storage[storageKey(r.UserID, r.Collection, r.Key)]; ok {
			result = append(result, object)
		}
	}
	return result, nil
}

func (m *testNakamaModule) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return nil, errors.New("storage write failed")
	}
	var acks []*api.StorageObjectAck
	for _, w := range writes {
		m.storage[storageKey(w.UserID, w.Collection, w.Key)] = &api.StorageObject{
			Collection:      w.Collection,
			Key:             w.Key,
			UserId:          w.UserID,
			Value:           w.Value,
			Version:         "v1",
			PermissionRead:  int32(w.PermissionRead),
			PermissionWrite: int32(w.PermissionWrite),
			UpdateTime:      timestamppb.Now(),
		}
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, UserId: w.UserID, Version: "v1"})
	}
	return acks, nil
}

func (m *testNakamaModule) StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range deletes {
		delete(m.storage, storageKey(d.UserID, d.Collection, d.Key))
	}
	return nil
}

// StorageList pages by key order; the cursor is the offset of the next page.
func (m *testNakamaModule) StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matching []*api.StorageObject
	for _, object := range m.storage {
		if object.UserId == userID && object.Collection == collection {
			matching = append(matching, object)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].Key < matching[j].Key })

	offset := 0
	if cursor != "" {
		var err error
		if offset, err = strconv.Atoi(cursor); err != nil {
			return nil, "", err
		}
	}
	if offset >= len(matching) {
		return nil, "", nil
	}
	end := offset + limit
	next := strconv.Itoa(end)
	if end >= len(matching) {
		end = len(matching)
		next = ""
	}
	return matching[offset:end], next, nil
}

func (m *testNakamaModule) ReadFile(path string) (*os.File, error) {
	m.mu.Lock()
	full, ok := m.files[path]
	m.mu.Unlock()
	if !ok {
		return nil, os.ErrNotExist
	}
	return os.Open(full)
}

func (m *testNakamaModule) NotificationsSend(ctx context.Context, notifications []*runtime.NotificationSend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, notifications...)
	return nil
}

// addFile makes content readable through ReadFile at path.
func (m *testNakamaModule) addFile(t *testing.T, path, content string) {
	t.Helper()
	full := filepath.Join(t.TempDir(), filepath.Base(path))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	m.mu.Lock()
	m.files[path] = full
	m.mu.Unlock()
}

func (m *testNakamaModule) count(userID, collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, object := range m.storage {
		if object.UserId == userID && object.Collection == collection {
			n++
		}
	}
	return n
}
