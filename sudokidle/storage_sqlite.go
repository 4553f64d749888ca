package sudokidle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps a single installation's records in a local SQLite database.
type SQLiteStore struct {
	conn      *sqlx.DB
	installID string
}

// OpenSQLiteStore opens or creates the database at path, migrates it and records an
// installation id on first open.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.ensureInstallID(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("install id: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// InstallID identifies this database across restarts.
func (s *SQLiteStore) InstallID() string {
	return s.installID
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS player (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		level INTEGER NOT NULL DEFAULT 1,
		highest_level INTEGER NOT NULL DEFAULT 1,
		total_completed_sudokus INTEGER NOT NULL DEFAULT 0,
		available_sudokus INTEGER NOT NULL DEFAULT 0,
		max_lives INTEGER NOT NULL DEFAULT 1,
		current_lives INTEGER NOT NULL DEFAULT 1,
		mistakes INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS completed_sudokus (
		difficulty TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS idler_progress (
		idler_id TEXT PRIMARY KEY,
		level INTEGER NOT NULL DEFAULT 1,
		last_update_time INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ability_unlocks (
		ability_id TEXT PRIMARY KEY,
		unlocked INTEGER NOT NULL DEFAULT 0,
		uses_remaining INTEGER
	);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		sound_enabled INTEGER NOT NULL DEFAULT 1,
		check_answers_enabled INTEGER NOT NULL DEFAULT 0,
		autofill_enabled INTEGER NOT NULL DEFAULT 0,
		debug_errors_enabled INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *SQLiteStore) ensureInstallID() error {
	var id string
	err := s.conn.Get(&id, `SELECT value FROM meta WHERE key = 'install_id'`)
	if err == nil {
		s.installID = id
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	id = uuid.NewString()
	if _, err := s.conn.Exec(`INSERT INTO meta (key, value) VALUES ('install_id', ?)`, id); err != nil {
		return err
	}
	s.installID = id
	return nil
}

type playerRow struct {
	Level                 int   `db:"level"`
	HighestLevel          int   `db:"highest_level"`
	TotalCompletedSudokus int64 `db:"total_completed_sudokus"`
	AvailableSudokus      int64 `db:"available_sudokus"`
	MaxLives              int   `db:"max_lives"`
	CurrentLives          int   `db:"current_lives"`
	Mistakes              int   `db:"mistakes"`
}

type completedRow struct {
	Difficulty string `db:"difficulty"`
	Count      int64  `db:"count"`
}

func (s *SQLiteStore) LoadPlayer(ctx context.Context) (*PlayerProgress, error) {
	var row playerRow
	err := s.conn.GetContext(ctx, &row, `SELECT level, highest_level, total_completed_sudokus,
		available_sudokus, max_lives, current_lives, mistakes FROM player WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load player: %w", err)
	}

	var completed []completedRow
	if err := s.conn.SelectContext(ctx, &completed, `SELECT difficulty, count FROM completed_sudokus`); err != nil {
		return nil, fmt.Errorf("load completed sudokus: %w", err)
	}

	progress := &PlayerProgress{
		Level:                 row.Level,
		HighestLevel:          row.HighestLevel,
		TotalCompletedSudokus: row.TotalCompletedSudokus,
		AvailableSudokus:      row.AvailableSudokus,
		MaxLives:              row.MaxLives,
		CurrentLives:          row.CurrentLives,
		Mistakes:              row.Mistakes,
		CompletedSudokus:      make(map[Difficulty]int64, len(completed)),
	}
	for _, c := range completed {
		progress.CompletedSudokus[Difficulty(c.Difficulty)] = c.Count
	}
	return progress, nil
}

func (s *SQLiteStore) SavePlayer(ctx context.Context, progress *PlayerProgress) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `INSERT OR REPLACE INTO player (id, level, highest_level,
		total_completed_sudokus, available_sudokus, max_lives, current_lives, mistakes)
		VALUES (1, :level, :highest_level, :total_completed_sudokus, :available_sudokus,
		:max_lives, :current_lives, :mistakes)`, playerRow{
		Level:                 progress.Level,
		HighestLevel:          progress.HighestLevel,
		TotalCompletedSudokus: progress.TotalCompletedSudokus,
		AvailableSudokus:      progress.AvailableSudokus,
		MaxLives:              progress.MaxLives,
		CurrentLives:          progress.CurrentLives,
		Mistakes:              progress.Mistakes,
	})
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}

	for difficulty, count := range progress.CompletedSudokus {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO completed_sudokus (difficulty, count)
			VALUES (?, ?)`, string(difficulty), count); err != nil {
			return fmt.Errorf("save completed sudokus: %w", err)
		}
	}

	return tx.Commit()
}

type abilityRow struct {
	AbilityId     string        `db:"ability_id"`
	Unlocked      bool          `db:"unlocked"`
	UsesRemaining sql.NullInt64 `db:"uses_remaining"`
}

func (s *SQLiteStore) LoadAbilities(ctx context.Context) (map[string]*AbilityUnlock, error) {
	var rows []abilityRow
	if err := s.conn.SelectContext(ctx, &rows, `SELECT ability_id, unlocked, uses_remaining FROM ability_unlocks`); err != nil {
		return nil, fmt.Errorf("load abilities: %w", err)
	}

	unlocks := make(map[string]*AbilityUnlock, len(rows))
	for _, row := range rows {
		uses := UnlimitedUses()
		if row.UsesRemaining.Valid {
			uses = LimitedUses(int(row.UsesRemaining.Int64))
		}
		unlocks[row.AbilityId] = &AbilityUnlock{
			AbilityId:     row.AbilityId,
			Unlocked:      row.Unlocked,
			UsesRemaining: uses,
		}
	}
	return unlocks, nil
}

func (s *SQLiteStore) SaveAbility(ctx context.Context, unlock *AbilityUnlock) error {
	row := abilityRow{AbilityId: unlock.AbilityId, Unlocked: unlock.Unlocked}
	if unlock.UsesRemaining.Limited() {
		row.UsesRemaining = sql.NullInt64{Int64: int64(unlock.UsesRemaining.Remaining()), Valid: true}
	}
	_, err := s.conn.NamedExecContext(ctx, `INSERT OR REPLACE INTO ability_unlocks (ability_id, unlocked, uses_remaining)
		VALUES (:ability_id, :unlocked, :uses_remaining)`, row)
	if err != nil {
		return fmt.Errorf("save ability %s: %w", unlock.AbilityId, err)
	}
	return nil
}

func (s *SQLiteStore) ClearAbilities(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM ability_unlocks`); err != nil {
		return fmt.Errorf("clear abilities: %w", err)
	}
	return nil
}

type idlerRow struct {
	IdlerId        string `db:"idler_id"`
	Level          int    `db:"level"`
	LastUpdateTime int64  `db:"last_update_time"`
}

func (s *SQLiteStore) LoadIdlers(ctx context.Context) (map[string]*IdlerProgress, error) {
	var rows []idlerRow
	if err := s.conn.SelectContext(ctx, &rows, `SELECT idler_id, level, last_update_time FROM idler_progress`); err != nil {
		return nil, fmt.Errorf("load idlers: %w", err)
	}

	idlers := make(map[string]*IdlerProgress, len(rows))
	for _, row := range rows {
		idlers[row.IdlerId] = &IdlerProgress{
			IdlerId:        row.IdlerId,
			Level:          row.Level,
			LastUpdateTime: row.LastUpdateTime,
		}
	}
	return idlers, nil
}

func (s *SQLiteStore) SaveIdler(ctx context.Context, progress *IdlerProgress) error {
	_, err := s.conn.NamedExecContext(ctx, `INSERT OR REPLACE INTO idler_progress (idler_id, level, last_update_time)
		VALUES (:idler_id, :level, :last_update_time)`, idlerRow{
		IdlerId:        progress.IdlerId,
		Level:          progress.Level,
		LastUpdateTime: progress.LastUpdateTime,
	})
	if err != nil {
		return fmt.Errorf("save idler %s: %w", progress.IdlerId, err)
	}
	return nil
}

func (s *SQLiteStore) ClearIdlers(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM idler_progress`); err != nil {
		return fmt.Errorf("clear idlers: %w", err)
	}
	return nil
}

type settingsRow struct {
	SoundEnabled        bool `db:"sound_enabled"`
	CheckAnswersEnabled bool `db:"check_answers_enabled"`
	AutofillEnabled     bool `db:"autofill_enabled"`
	DebugErrorsEnabled  bool `db:"debug_errors_enabled"`
}

func (s *SQLiteStore) LoadSettings(ctx context.Context) (*Settings, error) {
	var row settingsRow
	err := s.conn.GetContext(ctx, &row, `SELECT sound_enabled, check_answers_enabled, autofill_enabled,
		debug_errors_enabled FROM settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &Settings{
		SoundEnabled:        row.SoundEnabled,
		CheckAnswersEnabled: row.CheckAnswersEnabled,
		AutofillEnabled:     row.AutofillEnabled,
		DebugErrorsEnabled:  row.DebugErrorsEnabled,
	}, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, settings *Settings) error {
	_, err := s.conn.NamedExecContext(ctx, `INSERT OR REPLACE INTO settings (id, sound_enabled,
		check_answers_enabled, autofill_enabled, debug_errors_enabled)
		VALUES (1, :sound_enabled, :check_answers_enabled, :autofill_enabled, :debug_errors_enabled)`, settingsRow{
		SoundEnabled:        settings.SoundEnabled,
		CheckAnswersEnabled: settings.CheckAnswersEnabled,
		AutofillEnabled:     settings.AutofillEnabled,
		DebugErrorsEnabled:  settings.DebugErrorsEnabled,
	})
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
