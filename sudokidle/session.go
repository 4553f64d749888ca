package sudokidle

import (
	"math/rand"
)

// Session is the puzzle currently being played: the board from the provider, the player's grid
// and any active hint.
type Session struct {
	board      *Board
	grid       Grid
	hintCells  []CellCoord
	hintNumber int
}

// BoardState is the client view of a Session.
type BoardState struct {
	Difficulty Difficulty  `json:"difficulty"`
	Puzzle     Grid        `json:"puzzle"`
	Grid       Grid        `json:"grid"`
	HintCells  []CellCoord `json:"hint_cells,omitempty"`
	HintNumber int         `json:"hint_number,omitempty"`
	Complete   bool        `json:"complete"`
}

func NewSession(board *Board) *Session {
	return &Session{board: board, grid: board.Puzzle}
}

func (s *Session) Board() *Board {
	return s.board
}

func (s *Session) Grid() Grid {
	return s.grid
}

func (s *Session) State() *BoardState {
	return &BoardState{
		Difficulty: s.board.Difficulty,
		Puzzle:     s.board.Puzzle,
		Grid:       s.grid,
		HintCells:  append([]CellCoord(nil), s.hintCells...),
		HintNumber: s.hintNumber,
		Complete:   s.grid.Full(),
	}
}

// Reset restores the original puzzle and clears hints.
func (s *Session) Reset() {
	s.grid = s.board.Puzzle
	s.ClearHints()
}

func (s *Session) ClearHints() {
	s.hintCells = nil
	s.hintNumber = 0
}

// IsFixed reports whether the cell was given by the puzzle.
func (s *Session) IsFixed(row, col int) bool {
	return s.board.Puzzle[row][col] != 0
}

// Set writes value (0 clears) into an editable cell.
func (s *Session) Set(row, col, value int) Result {
	if row < 0 || row > 8 || col < 0 || col > 8 || value < 0 || value > 9 {
		return Rejected(ReasonOutOfRange)
	}
	if s.IsFixed(row, col) {
		return Rejected(ReasonFixedCell)
	}
	s.grid[row][col] = value
	return Ok
}

// fill writes the solution digit into each empty cell and returns how many were filled.
func (s *Session) fill(cells []CellCoord) int {
	filled := 0
	for _, cell := range cells {
		if s.grid[cell.Row][cell.Col] == 0 {
			s.grid[cell.Row][cell.Col] = s.board.Solution[cell.Row][cell.Col]
			filled++
		}
	}
	return filled
}

// HintV1 marks three random empty cells and shows the solution digit of one of them.
func (s *Session) HintV1(rng *rand.Rand) Result {
	empty := s.grid.EmptyCells()
	if len(empty) < 3 {
		return Rejected(ReasonNotEnoughEmptyCells)
	}
	rng.Shuffle(len(empty), func(i, j int) {
		empty[i], empty[j] = empty[j], empty[i]
	})
	selected := append([]CellCoord(nil), empty[:3]...)
	s.hintCells = selected
	s.hintNumber = s.board.Solution[selected[0].Row][selected[0].Col]
	return Ok
}

// FillRandomCell fills one random empty cell with its solution digit.
func (s *Session) FillRandomCell(rng *rand.Rand) (CellCoord, Result) {
	empty := s.grid.EmptyCells()
	if len(empty) == 0 {
		return CellCoord{}, Rejected(ReasonNotEnoughEmptyCells)
	}
	cell := empty[rng.Intn(len(empty))]
	s.fill([]CellCoord{cell})
	return cell, Ok
}

func (s *Session) FillRow(row int) Result {
	if row < 0 || row > 8 {
		return Rejected(ReasonOutOfRange)
	}
	cells := make([]CellCoord, 0, 9)
	for c := 0; c < 9; c++ {
		cells = append(cells, CellCoord{Row: row, Col: c})
	}
	return s.fillSection(cells)
}

func (s *Session) FillColumn(col int) Result {
	if col < 0 || col > 8 {
		return Rejected(ReasonOutOfRange)
	}
	cells := make([]CellCoord, 0, 9)
	for r := 0; r < 9; r++ {
		cells = append(cells, CellCoord{Row: r, Col: col})
	}
	return s.fillSection(cells)
}

func (s *Session) FillQuadrant(quadrant int) Result {
	if quadrant < 0 || quadrant > 8 {
		return Rejected(ReasonOutOfRange)
	}
	return s.fillSection(QuadrantCells(quadrant))
}

func (s *Session) fillSection(cells []CellCoord) Result {
	if s.fill(cells) == 0 {
		return Rejected(ReasonNotEnoughEmptyCells)
	}
	return Ok
}

// WrongCells lists filled cells whose digit differs from the solution.
func (s *Session) WrongCells() []CellCoord {
	wrong := make([]CellCoord, 0)
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if v := s.grid[r][c]; v != 0 && v != s.board.Solution[r][c] {
				wrong = append(wrong, CellCoord{Row: r, Col: c})
			}
		}
	}
	return wrong
}
