package sudokidle

import (
	"fmt"
	"math/rand"
	"sync"
)

// Difficulty labels a puzzle and keys the per-difficulty completion counters.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHard     Difficulty = "hard"
	DifficultyAdvanced Difficulty = "advanced"
)

// Difficulties lists every known difficulty in ascending order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyAdvanced}

// ParseDifficulty returns the difficulty named by s. An empty string is easy.
func ParseDifficulty(s string) (Difficulty, error) {
	if s == "" {
		return DifficultyEasy, nil
	}
	for _, d := range Difficulties {
		if string(d) == s {
			return d, nil
		}
	}
	return "", ErrUnknownDifficulty
}

func (d Difficulty) Valid() bool {
	_, err := ParseDifficulty(string(d))
	return err == nil && d != ""
}

// Grid is a 9x9 sudoku grid. Zero marks an empty cell.
type Grid [9][9]int

// CellCoord identifies a cell on the board.
type CellCoord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Board is a puzzle with its solution, as supplied by a BoardProvider.
type Board struct {
	Puzzle     Grid       `json:"puzzle" yaml:"puzzle"`
	Solution   Grid       `json:"solution" yaml:"solution"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
}

// Full reports whether no cell of g is empty.
func (g *Grid) Full() bool {
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if g[r][c] == 0 {
				return false
			}
		}
	}
	return true
}

// EmptyCells lists the empty cells of g in row-major order.
func (g *Grid) EmptyCells() []CellCoord {
	cells := make([]CellCoord, 0, 81)
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if g[r][c] == 0 {
				cells = append(cells, CellCoord{Row: r, Col: c})
			}
		}
	}
	return cells
}

// IsValidSudoku reports whether g has no duplicate digit in any row, column or 3x3 box
// and holds only digits 0-9. Empty cells are ignored.
func IsValidSudoku(g *Grid) bool {
	var rows, cols, boxes [9]int
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			val := g[r][c]
			if val == 0 {
				continue
			}
			if val < 1 || val > 9 {
				return false
			}
			bit := 1 << val
			b := QuadrantIndex(r, c)
			if rows[r]&bit != 0 || cols[c]&bit != 0 || boxes[b]&bit != 0 {
				return false
			}
			rows[r] |= bit
			cols[c] |= bit
			boxes[b] |= bit
		}
	}
	return true
}

// IsCellValid reports whether the digit at (row, col) does not repeat in its row, column
// or box. An empty cell is always valid.
func IsCellValid(g *Grid, row, col int) bool {
	val := g[row][col]
	if val == 0 {
		return true
	}
	for i := 0; i < 9; i++ {
		if i != col && g[row][i] == val {
			return false
		}
		if i != row && g[i][col] == val {
			return false
		}
	}
	for _, cell := range QuadrantCells(QuadrantIndex(row, col)) {
		if (cell.Row != row || cell.Col != col) && g[cell.Row][cell.Col] == val {
			return false
		}
	}
	return true
}

// QuadrantIndex returns the 3x3 box index (0-8, row-major) containing the cell.
func QuadrantIndex(row, col int) int {
	return (row/3)*3 + col/3
}

// QuadrantCells lists the nine cells of box i.
func QuadrantCells(i int) []CellCoord {
	startRow := (i / 3) * 3
	startCol := (i % 3) * 3
	cells := make([]CellCoord, 0, 9)
	for r := startRow; r < startRow+3; r++ {
		for c := startCol; c < startCol+3; c++ {
			cells = append(cells, CellCoord{Row: r, Col: c})
		}
	}
	return cells
}

// BoardProvider hands out puzzles by difficulty.
type BoardProvider interface {
	RandomBoard(difficulty Difficulty) (*Board, error)
}

// StaticBoardProvider selects from a fixed board list.
type StaticBoardProvider struct {
	mu     sync.Mutex
	boards []*Board
	rng    *rand.Rand
}

func NewStaticBoardProvider(boards []*Board, rng *rand.Rand) *StaticBoardProvider {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &StaticBoardProvider{boards: boards, rng: rng}
}

// RandomBoard picks a random board of the requested difficulty, falling back to the first
// board when none match.
func (p *StaticBoardProvider) RandomBoard(difficulty Difficulty) (*Board, error) {
	if len(p.boards) == 0 {
		return nil, ErrNoBoards
	}

	matching := make([]*Board, 0, len(p.boards))
	for _, b := range p.boards {
		if b.Difficulty == difficulty {
			matching = append(matching, b)
		}
	}
	if len(matching) == 0 {
		return p.boards[0], nil
	}

	p.mu.Lock()
	idx := p.rng.Intn(len(matching))
	p.mu.Unlock()
	return matching[idx], nil
}

func validateBoard(b *Board) error {
	if !b.Difficulty.Valid() {
		return fmt.Errorf("board difficulty %q: %w", b.Difficulty, ErrUnknownDifficulty)
	}
	if !b.Solution.Full() || !IsValidSudoku(&b.Solution) {
		return fmt.Errorf("board solution is not a solved grid")
	}
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if v := b.Puzzle[r][c]; v != 0 && v != b.Solution[r][c] {
				return fmt.Errorf("board puzzle disagrees with solution at (%d,%d)", r, c)
			}
		}
	}
	return nil
}
