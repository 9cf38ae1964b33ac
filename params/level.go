package params

// Level is a named rank reached at a minimum experience score.
// Description may contain a single %s verb, filled with the points still
// missing for the next level.
type Level struct {
	Name        string
	Description string
	MinPoints   int
}

// LevelTable is ordered by MinPoints, ascending. Level numbers start at 1.
type LevelTable []Level

func DefaultLevelTable() LevelTable {
	return LevelTable{
		{
			Name:        "Hiking Initiate",
			Description: "Welcome to hiking! Your adventure has not started yet. Record your first route and start exploring.",
			MinPoints:   0,
		},
		{
			Name:        "Beginner Explorer",
			Description: "Keep it up! Add kilometers and record more routes. You are %s points away from Intermediate Trekker.",
			MinPoints:   1,
		},
		{
			Name:        "Intermediate Trekker",
			Description: "To reach Expert Adventurer, keep exploring longer or harder routes. You need %s more points.",
			MinPoints:   500,
		},
		{
			Name:        "Expert Adventurer",
			Description: "Great work! You are close to becoming a Hiking Legend. Only %s points to go.",
			MinPoints:   1000,
		},
		{
			Name:        "Hiking Legend",
			Description: "Congratulations! You reached the top level.",
			MinPoints:   2000,
		},
	}
}

// Lookup returns the 1-based number of the highest level reached by points.
// Scores below the first threshold still get level 1.
func (t LevelTable) Lookup(points int) int {
	level := 1
	for i, l := range t {
		if points >= l.MinPoints {
			level = i + 1
		}
	}
	return level
}

// Remaining returns the points missing to reach the level after the given one,
// or 0 at the top level.
func (t LevelTable) Remaining(level, points int) int {
	if level >= len(t) {
		return 0
	}
	return t[level].MinPoints - points
}
