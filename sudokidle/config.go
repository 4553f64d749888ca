package sudokidle

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/heroiclabs/nakama-common/runtime"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigYAML []byte

// LevelRequirement is one row of the level threshold table.
type LevelRequirement struct {
	Level           int   `json:"level" yaml:"level"`
	RequiredSudokus int64 `json:"required_sudokus" yaml:"required_sudokus"`
}

// Refill names the moment an ability's use budget is restored.
type Refill string

const (
	// RefillNewBoard restores the budget whenever a puzzle is loaded.
	RefillNewBoard Refill = "new_board"
	// RefillCompletion restores the budget only when a puzzle is solved.
	RefillCompletion Refill = "completion"
)

// AbilityConfig describes a player ability. A nil MaxUses means the ability has no budget.
type AbilityConfig struct {
	Id          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	UnlockLevel int    `json:"unlock_level" yaml:"unlock_level"`
	MaxUses     *int   `json:"max_uses,omitempty" yaml:"max_uses,omitempty"`
	Refill      Refill `json:"refill,omitempty" yaml:"refill,omitempty"`
}

// InitialUses returns the use budget the ability starts every puzzle with.
func (a *AbilityConfig) InitialUses() Uses {
	if a.MaxUses == nil {
		return UnlimitedUses()
	}
	return LimitedUses(*a.MaxUses)
}

type IdlerConfigLevel struct {
	Level           int     `json:"level" yaml:"level"`
	SudokusProduced int64   `json:"sudokus_produced" yaml:"sudokus_produced"`
	RatePerMinute   float64 `json:"rate_per_minute" yaml:"rate_per_minute"`
	UpgradeCost     int64   `json:"upgrade_cost" yaml:"upgrade_cost"`
}

// IdlerConfig describes a passive generator and its upgrade table. Levels[i] is level i+1.
type IdlerConfig struct {
	Id          string              `json:"id" yaml:"id"`
	Name        string              `json:"name,omitempty" yaml:"name,omitempty"`
	Image       string              `json:"image,omitempty" yaml:"image,omitempty"`
	UnlockLevel int                 `json:"unlock_level" yaml:"unlock_level"`
	Levels      []*IdlerConfigLevel `json:"levels" yaml:"levels"`
}

// Level returns the config of the given tier, or nil when the tier is not configured.
func (c *IdlerConfig) Level(level int) *IdlerConfigLevel {
	if level < 1 || level > len(c.Levels) {
		return nil
	}
	return c.Levels[level-1]
}

func (c *IdlerConfig) MaxLevel() int {
	return len(c.Levels)
}

type AutofillConfig struct {
	CountdownTicks  int `json:"countdown_ticks,omitempty" yaml:"countdown_ticks,omitempty"`
	TickIntervalSec int `json:"tick_interval_sec,omitempty" yaml:"tick_interval_sec,omitempty"`
}

// BoardConfig is a puzzle/solution pair written as 81-character digit strings, row-major,
// with '0' or '.' for empty puzzle cells.
type BoardConfig struct {
	Puzzle     string     `json:"puzzle" yaml:"puzzle"`
	Solution   string     `json:"solution" yaml:"solution"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
}

// Config is the static game data. It is read once at start-up and never mutated.
type Config struct {
	LevelRequirements   []*LevelRequirement `json:"level_requirements" yaml:"level_requirements"`
	Abilities           []*AbilityConfig    `json:"abilities" yaml:"abilities"`
	Idlers              []*IdlerConfig      `json:"idlers" yaml:"idlers"`
	Autofill            AutofillConfig      `json:"autofill,omitempty" yaml:"autofill,omitempty"`
	IdlePollIntervalSec int                 `json:"idle_poll_interval_sec,omitempty" yaml:"idle_poll_interval_sec,omitempty"`
	DefaultDifficulty   Difficulty          `json:"default_difficulty,omitempty" yaml:"default_difficulty,omitempty"`
	Boards              []*BoardConfig      `json:"boards,omitempty" yaml:"boards,omitempty"`
}

// Ability returns the config for id, or nil when it is not configured.
func (c *Config) Ability(id string) *AbilityConfig {
	for _, a := range c.Abilities {
		if a.Id == id {
			return a
		}
	}
	return nil
}

// Idler returns the config for id, or nil when it is not configured.
func (c *Config) Idler(id string) *IdlerConfig {
	for _, i := range c.Idlers {
		if i.Id == id {
			return i
		}
	}
	return nil
}

// BoardList parses the configured boards.
func (c *Config) BoardList() ([]*Board, error) {
	boards := make([]*Board, 0, len(c.Boards))
	for i, bc := range c.Boards {
		puzzle, err := ParseGrid(bc.Puzzle)
		if err != nil {
			return nil, fmt.Errorf("board %d puzzle: %w", i, err)
		}
		solution, err := ParseGrid(bc.Solution)
		if err != nil {
			return nil, fmt.Errorf("board %d solution: %w", i, err)
		}
		board := &Board{Puzzle: puzzle, Solution: solution, Difficulty: bc.Difficulty}
		if err := validateBoard(board); err != nil {
			return nil, fmt.Errorf("board %d: %w", i, err)
		}
		boards = append(boards, board)
	}
	return boards, nil
}

// ParseGrid reads an 81-character row-major digit string.
func ParseGrid(s string) (Grid, error) {
	var g Grid
	s = strings.Join(strings.Fields(s), "")
	if len(s) != 81 {
		return g, fmt.Errorf("grid must have 81 cells, got %d", len(s))
	}
	for i, ch := range s {
		switch {
		case ch == '.':
			g[i/9][i%9] = 0
		case ch >= '0' && ch <= '9':
			g[i/9][i%9] = int(ch - '0')
		default:
			return g, fmt.Errorf("invalid cell %q at %d", ch, i)
		}
	}
	return g, nil
}

func (c *Config) applyDefaults() {
	if c.Autofill.CountdownTicks <= 0 {
		c.Autofill.CountdownTicks = 60
	}
	if c.Autofill.TickIntervalSec <= 0 {
		c.Autofill.TickIntervalSec = 1
	}
	if c.IdlePollIntervalSec <= 0 {
		c.IdlePollIntervalSec = 1
	}
	if c.DefaultDifficulty == "" {
		c.DefaultDifficulty = DifficultyEasy
	}
	for _, a := range c.Abilities {
		if a != nil && a.Refill == "" {
			a.Refill = RefillNewBoard
		}
	}
}

// Validate rejects malformed tables. Thresholds must be strictly ascending by level and
// non-decreasing by requirement, ids must be unique, and idler tiers must be numbered 1..n
// with positive rates.
func (c *Config) Validate() error {
	for i, req := range c.LevelRequirements {
		if req == nil {
			return fmt.Errorf("level requirement %d is empty", i)
		}
		if req.Level < 1 || req.RequiredSudokus < 0 {
			return fmt.Errorf("level requirement %d out of range", i)
		}
		if i > 0 {
			prev := c.LevelRequirements[i-1]
			if req.Level <= prev.Level {
				return fmt.Errorf("level requirement %d: levels must be strictly ascending", i)
			}
			if req.RequiredSudokus < prev.RequiredSudokus {
				return fmt.Errorf("level requirement %d: required sudokus must not decrease", i)
			}
		}
	}

	abilityIDs := make(map[string]struct{}, len(c.Abilities))
	for i, a := range c.Abilities {
		if a == nil || a.Id == "" {
			return fmt.Errorf("ability %d has no id", i)
		}
		if _, found := abilityIDs[a.Id]; found {
			return fmt.Errorf("duplicate ability id %q", a.Id)
		}
		abilityIDs[a.Id] = struct{}{}
		if a.MaxUses != nil && *a.MaxUses < 0 {
			return fmt.Errorf("ability %q: max uses must not be negative", a.Id)
		}
		switch a.Refill {
		case "", RefillNewBoard, RefillCompletion:
		default:
			return fmt.Errorf("ability %q: unknown refill %q", a.Id, a.Refill)
		}
	}

	idlerIDs := make(map[string]struct{}, len(c.Idlers))
	for i, idler := range c.Idlers {
		if idler == nil || idler.Id == "" {
			return fmt.Errorf("idler %d has no id", i)
		}
		if _, found := idlerIDs[idler.Id]; found {
			return fmt.Errorf("duplicate idler id %q", idler.Id)
		}
		idlerIDs[idler.Id] = struct{}{}
		if len(idler.Levels) == 0 {
			return fmt.Errorf("idler %q has no levels", idler.Id)
		}
		for n, lvl := range idler.Levels {
			if lvl == nil || lvl.Level != n+1 {
				return fmt.Errorf("idler %q: levels must be numbered from 1 without gaps", idler.Id)
			}
			if lvl.RatePerMinute <= 0 || lvl.SudokusProduced < 0 || lvl.UpgradeCost < 0 {
				return fmt.Errorf("idler %q level %d out of range", idler.Id, lvl.Level)
			}
		}
	}

	if !c.DefaultDifficulty.Valid() {
		return fmt.Errorf("default difficulty %q: %w", c.DefaultDifficulty, ErrUnknownDifficulty)
	}

	if _, err := c.BoardList(); err != nil {
		return err
	}

	return nil
}

// LoadConfigJSON decodes and validates a JSON config.
func LoadConfigJSON(data []byte) (*Config, error) {
	config := &Config{}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("decode json config: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigYAML decodes and validates a YAML config.
func LoadConfigYAML(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("decode yaml config: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns the embedded game data.
func DefaultConfig() *Config {
	config, err := LoadConfigYAML(defaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return config
}

// ReadConfigFile loads a config through the Nakama runtime file reader. Files ending in
// .yaml or .yml are read as YAML, everything else as JSON.
func ReadConfigFile(logger runtime.Logger, nk runtime.NakamaModule, path string) (*Config, error) {
	file, err := nk.ReadFile(path)
	if err != nil {
		logger.Error("Failed to read config file %s: %v", path, err)
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read config file contents %s: %v", path, err)
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadConfigYAML(data)
	default:
		return LoadConfigJSON(data)
	}
}
