package sudokidle

// ComputeLevel returns the highest level whose requirement is met by available. The table is
// scanned in order and the scan stops at the first unmet requirement. Level 1 is returned
// when nothing is met.
func ComputeLevel(available int64, requirements []*LevelRequirement) int {
	level := 1
	for _, req := range requirements {
		if available < req.RequiredSudokus {
			break
		}
		level = req.Level
	}
	return level
}

// ComputeMaxLives maps the highest level achieved to the concurrent lives cap.
func ComputeMaxLives(highestLevel int) int {
	switch {
	case highestLevel >= 4:
		return 5
	case highestLevel >= 2:
		return 3
	default:
		return 1
	}
}
